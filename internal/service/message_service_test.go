package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cwrk-planet/fanout-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func testDraft() domain.MessageDraft {
	return domain.MessageDraft{
		Body:        "hello",
		UserID:      1,
		MemberID:    10,
		WorkspaceID: "ws1",
		ChannelID:   strptr("ch1"),
	}
}

func TestSendUnauthorizedShortCircuits(t *testing.T) {
	dir := newFakeDirectory()
	dir.workspaces["ws1"] = true // воркспейс есть, членства нет
	store := newFakeStore()
	svc := NewMessageService(store, dir)

	_, err := svc.Send(context.Background(), testDraft())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Zero(t, store.count(), "unauthorized send must not reach the store")
}

func TestSendWorkspaceMissing(t *testing.T) {
	store := newFakeStore()
	svc := NewMessageService(store, newFakeDirectory())

	_, err := svc.Send(context.Background(), testDraft())
	require.ErrorIs(t, err, domain.ErrWorkspaceNotFound)
	require.Zero(t, store.count())
}

func TestSendValidation(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	svc := NewMessageService(newFakeStore(), dir)
	ctx := context.Background()

	d := testDraft()
	d.Body = "   "
	_, err := svc.Send(ctx, d)
	require.Error(t, err)

	d = testDraft()
	d.ChannelID = nil
	_, err = svc.Send(ctx, d)
	require.Error(t, err, "message needs a channel or conversation anchor")
}

func TestSendReplyRequiresParent(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	store := newFakeStore()
	svc := NewMessageService(store, dir)

	d := testDraft()
	d.ParentID = strptr("nosuch")
	_, err := svc.Send(context.Background(), d)
	require.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestEditDeleteAuthorizeViaMessageWorkspace(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	store := newFakeStore()
	store.put(domain.Message{ID: "m1", Body: "old", MemberID: 10, WorkspaceID: "ws1", ChannelID: strptr("ch1")})
	svc := NewMessageService(store, dir)
	ctx := context.Background()

	// user 2 не состоит в ws1
	_, err := svc.Edit(ctx, 2, "m1", "new")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Delete(ctx, 2, "m1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, 1, store.count(), "unauthorized delete must not mutate the store")

	updated, err := svc.Edit(ctx, 1, "m1", "new")
	require.NoError(t, err)
	require.Equal(t, "new", updated.Body)

	_, err = svc.Edit(ctx, 1, "nosuch", "x")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestDeleteCascadesReplies(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	store := newFakeStore()
	store.put(domain.Message{ID: "parent", MemberID: 10, WorkspaceID: "ws1", ChannelID: strptr("ch1")})
	store.put(domain.Message{ID: "r1", MemberID: 11, WorkspaceID: "ws1", ChannelID: strptr("ch1"), ParentID: strptr("parent")})
	store.put(domain.Message{ID: "r2", MemberID: 12, WorkspaceID: "ws1", ChannelID: strptr("ch1"), ParentID: strptr("parent")})
	store.put(domain.Message{ID: "other", MemberID: 10, WorkspaceID: "ws1", ChannelID: strptr("ch1")})
	svc := NewMessageService(store, dir)

	memberID, err := svc.Delete(context.Background(), 1, "parent")
	require.NoError(t, err)
	require.Equal(t, int64(10), memberID)
	require.Equal(t, 1, store.count(), "parent and both replies removed, unrelated message kept")
}

func TestToggleReactionIsItsOwnInverse(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	store := newFakeStore()
	store.put(domain.Message{ID: "m1", MemberID: 10, WorkspaceID: "ws1", ChannelID: strptr("ch1")})
	svc := NewMessageService(store, dir)
	ctx := context.Background()

	msg, err := svc.ToggleReaction(ctx, 1, "m1", 10, "👍")
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 1)
	require.Equal(t, "👍", msg.Reactions[0].Value)
	require.Equal(t, int64(10), msg.Reactions[0].MemberID)

	msg, err = svc.ToggleReaction(ctx, 1, "m1", 10, "👍")
	require.NoError(t, err)
	require.Empty(t, msg.Reactions, "second toggle removes the triple")
}

func TestToggleReactionConcurrentParity(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	store := newFakeStore()
	store.put(domain.Message{ID: "m1", MemberID: 10, WorkspaceID: "ws1", ChannelID: strptr("ch1")})
	svc := NewMessageService(store, dir)
	ctx := context.Background()

	for _, n := range []int{4, 7} {
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.ToggleReaction(ctx, 1, "m1", 10, "🎉")
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err, "no duplicate-triple error may surface to callers")
		}
		want := n%2 == 1
		require.Equal(t, want, store.hasReaction("m1", 10, "🎉"),
			"%d toggles must leave the triple %v", n, want)

		// вернуть исходное состояние перед следующим прогоном
		if want {
			_, err := svc.ToggleReaction(ctx, 1, "m1", 10, "🎉")
			require.NoError(t, err)
		}
	}
}

func TestToggleReactionMessageMissing(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	svc := NewMessageService(newFakeStore(), dir)

	_, err := svc.ToggleReaction(context.Background(), 1, "nosuch", 10, "👍")
	require.ErrorIs(t, err, domain.ErrMessageNotFound)
}
