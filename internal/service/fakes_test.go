package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

type fakeDirectory struct {
	sessions   map[string]*domain.Session
	workspaces map[string]bool
	members    map[string]map[int64]bool // workspaceID -> userID -> member
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		sessions:   make(map[string]*domain.Session),
		workspaces: make(map[string]bool),
		members:    make(map[string]map[int64]bool),
	}
}

func (d *fakeDirectory) addMember(workspaceID string, userID int64) {
	d.workspaces[workspaceID] = true
	if d.members[workspaceID] == nil {
		d.members[workspaceID] = make(map[int64]bool)
	}
	d.members[workspaceID][userID] = true
}

func (d *fakeDirectory) SessionByToken(_ context.Context, token string) (*domain.Session, error) {
	s, ok := d.sessions[token]
	if !ok {
		return nil, domain.ErrAuthentication
	}
	return s, nil
}

func (d *fakeDirectory) WorkspaceExists(_ context.Context, id string) (bool, error) {
	return d.workspaces[id], nil
}

func (d *fakeDirectory) IsMember(_ context.Context, workspaceID string, userID int64) (bool, error) {
	return d.members[workspaceID][userID], nil
}

// fakeStore — Message Store в памяти. Toggle выполняет весь read-branch-write
// под мьютексом — in-memory аналог блокировки строки сообщения в настоящем
// repo; само поведение настоящего toggle-а под нагрузкой проверяет
// интеграционный тест в internal/postgres.
type fakeStore struct {
	mu        sync.Mutex
	messages  map[string]*domain.Message
	reactions map[[2]string]map[int64]bool // [messageID, value] -> memberIDs
	creates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:  make(map[string]*domain.Message),
		reactions: make(map[[2]string]map[int64]bool),
	}
}

func (f *fakeStore) put(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := m
	f.messages[m.ID] = &cp
}

func (f *fakeStore) Create(_ context.Context, d domain.MessageDraft) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++

	if d.ParentID != nil {
		if _, ok := f.messages[*d.ParentID]; !ok {
			return nil, domain.ErrParentNotFound
		}
	}

	m := &domain.Message{
		ID:             fmt.Sprintf("m%d", f.creates),
		Body:           d.Body,
		MemberID:       d.MemberID,
		WorkspaceID:    d.WorkspaceID,
		ChannelID:      d.ChannelID,
		ConversationID: d.ConversationID,
		ParentID:       d.ParentID,
		Attachments:    d.Attachments,
		Reactions:      []domain.Reaction{},
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) Edit(_ context.Context, id, body string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	m.Body = body
	cp := *m
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return 0, domain.ErrMessageNotFound
	}
	for rid, reply := range f.messages {
		if reply.ParentID != nil && *reply.ParentID == id {
			delete(f.messages, rid)
		}
	}
	delete(f.messages, id)
	return m.MemberID, nil
}

func (f *fakeStore) ToggleReaction(_ context.Context, messageID string, memberID int64, value string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.messages[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}

	key := [2]string{messageID, value}
	set := f.reactions[key]
	if set == nil {
		set = make(map[int64]bool)
		f.reactions[key] = set
	}
	if set[memberID] {
		delete(set, memberID)
	} else {
		set[memberID] = true
	}

	cp := *m
	cp.Reactions = []domain.Reaction{}
	for id := range set {
		cp.Reactions = append(cp.Reactions, domain.Reaction{MessageID: messageID, MemberID: id, Value: value})
	}
	return &cp, nil
}

func (f *fakeStore) WorkspaceOf(_ context.Context, messageID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return "", domain.ErrMessageNotFound
	}
	return m.WorkspaceID, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) hasReaction(messageID string, memberID int64, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactions[[2]string{messageID, value}][memberID]
}
