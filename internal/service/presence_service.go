package service

import (
	"context"
	"sort"
	"sync"

	"github.com/cwrk-planet/fanout-service/internal/domain"
)

// PresenceTracker держит live-набор (member, user) по воркспейсам. Карта не
// покидает пределы сервиса: все мутации идут через Join/Leave под мьютексом,
// поэтому очистка при disconnect — чистая функция от состояния соединения.
type PresenceTracker struct {
	directory Directory

	mu     sync.Mutex
	online map[string]map[domain.PresenceEntry]struct{}
}

func NewPresenceTracker(directory Directory) *PresenceTracker {
	return &PresenceTracker{
		directory: directory,
		online:    make(map[string]map[domain.PresenceEntry]struct{}),
	}
}

// Join валидирует воркспейс и членство через Directory и добавляет запись.
// Возвращает полный снапшот для рассылки users-online.
func (t *PresenceTracker) Join(ctx context.Context, workspaceID string, entry domain.PresenceEntry) ([]domain.PresenceEntry, error) {
	exists, err := t.directory.WorkspaceExists(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrWorkspaceNotFound
	}

	isMember, err := t.directory.IsMember(ctx, workspaceID, entry.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, domain.ErrUnauthorized
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.online[workspaceID]
	if !ok {
		set = make(map[domain.PresenceEntry]struct{})
		t.online[workspaceID] = set
	}
	set[entry] = struct{}{}

	return snapshotLocked(set), nil
}

// Leave убирает запись. Удаление отсутствующей записи — no-op без рассылки.
// Пустой бакет удаляется целиком, и рассылки тоже нет.
func (t *PresenceTracker) Leave(workspaceID string, entry domain.PresenceEntry) (snapshot []domain.PresenceEntry, broadcast bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.online[workspaceID]
	if !ok {
		return nil, false
	}
	if _, ok := set[entry]; !ok {
		return nil, false
	}

	delete(set, entry)
	if len(set) == 0 {
		delete(t.online, workspaceID)
		return nil, false
	}

	return snapshotLocked(set), true
}

// Snapshot — текущий набор онлайн-участников воркспейса.
func (t *PresenceTracker) Snapshot(workspaceID string) []domain.PresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.online[workspaceID]
	if !ok {
		return []domain.PresenceEntry{}
	}
	return snapshotLocked(set)
}

func snapshotLocked(set map[domain.PresenceEntry]struct{}) []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberID != out[j].MemberID {
			return out[i].MemberID < out[j].MemberID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
