package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cwrk-planet/fanout-service/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestPresenceJoinLeave(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	dir.addMember("ws1", 2)
	tracker := NewPresenceTracker(dir)
	ctx := context.Background()

	m1 := domain.PresenceEntry{MemberID: 10, UserID: 1}
	m2 := domain.PresenceEntry{MemberID: 20, UserID: 2}

	snap, err := tracker.Join(ctx, "ws1", m1)
	require.NoError(t, err)
	require.Equal(t, []domain.PresenceEntry{m1}, snap)

	snap, err = tracker.Join(ctx, "ws1", m2)
	require.NoError(t, err)
	require.Equal(t, []domain.PresenceEntry{m1, m2}, snap)

	// M1 отключается без явного leave — та же операция, что и неявная очистка
	snap, ok := tracker.Leave("ws1", m1)
	require.True(t, ok)
	require.Equal(t, []domain.PresenceEntry{m2}, snap)
}

func TestPresenceLeaveAbsentIsNoop(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	tracker := NewPresenceTracker(dir)

	_, ok := tracker.Leave("ws1", domain.PresenceEntry{MemberID: 99, UserID: 99})
	require.False(t, ok, "leave of absent entry must not trigger a broadcast")

	_, ok = tracker.Leave("nosuch", domain.PresenceEntry{MemberID: 1, UserID: 1})
	require.False(t, ok)
}

func TestPresenceEmptyBucketDeleted(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	tracker := NewPresenceTracker(dir)

	e := domain.PresenceEntry{MemberID: 10, UserID: 1}
	_, err := tracker.Join(context.Background(), "ws1", e)
	require.NoError(t, err)

	snap, ok := tracker.Leave("ws1", e)
	require.False(t, ok, "last leave empties the bucket, nothing to broadcast")
	require.Nil(t, snap)
	require.Empty(t, tracker.Snapshot("ws1"))
}

func TestPresenceJoinValidation(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	tracker := NewPresenceTracker(dir)
	ctx := context.Background()

	_, err := tracker.Join(ctx, "nosuch", domain.PresenceEntry{MemberID: 1, UserID: 1})
	require.ErrorIs(t, err, domain.ErrWorkspaceNotFound)

	_, err = tracker.Join(ctx, "ws1", domain.PresenceEntry{MemberID: 5, UserID: 5})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Empty(t, tracker.Snapshot("ws1"), "failed join must not leave an entry behind")
}

func TestPresenceConcurrentJoins(t *testing.T) {
	dir := newFakeDirectory()
	tracker := NewPresenceTracker(dir)
	ctx := context.Background()

	const n = 32
	for i := int64(1); i <= n; i++ {
		dir.addMember("ws1", i)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := int64(0); i < n; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			_, errs[i] = tracker.Join(ctx, "ws1", domain.PresenceEntry{MemberID: i + 100, UserID: i + 1})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, tracker.Snapshot("ws1"), n)
}

func TestPresenceJoinDuplicateEntry(t *testing.T) {
	dir := newFakeDirectory()
	dir.addMember("ws1", 1)
	tracker := NewPresenceTracker(dir)
	ctx := context.Background()

	e := domain.PresenceEntry{MemberID: 10, UserID: 1}
	_, err := tracker.Join(ctx, "ws1", e)
	require.NoError(t, err)
	snap, err := tracker.Join(ctx, "ws1", e)
	require.NoError(t, err)
	require.Len(t, snap, 1, "presence is a set, duplicate join must not grow it")
}
