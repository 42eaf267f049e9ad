package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GideonLangenhoven/CKACashups/internal/domain"
	"github.com/GideonLangenhoven/CKACashups/internal/repo"
	"github.com/GideonLangenhoven/CKACashups/testutil"
)

// newTestStore opens a transaction against the test database and returns a
// Store bound to it. Everything is rolled back when the test finishes.
func newTestStore(t *testing.T) repo.Store {
	t.Helper()
	return repo.NewStore(testutil.NewTx(t))
}

func strPtr(s string) *string { return &s }

func mustGuide(t *testing.T, s repo.Store, name string, rank domain.Rank, email *string) domain.Guide {
	t.Helper()
	g, err := s.Guides.Create(context.Background(), domain.Guide{Name: name, Rank: rank, Active: true, Email: email})
	require.NoError(t, err)
	return g
}

func TestGuideRepo_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustGuide(t, s, "Thandi", domain.RankSenior, strPtr("thandi@example.com"))

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Guides.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thandi", got.Name)
	assert.Equal(t, domain.RankSenior, got.Rank)
	require.NotNil(t, got.Email)
	assert.Equal(t, "thandi@example.com", *got.Email)
}

func TestGuideRepo_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Guides.Get(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGuideRepo_ActiveEmailIsUnique(t *testing.T) {
	ctx := context.Background()

	// Use a savepoint so the failed insert does not abort the test transaction.
	err := repo.NewTxRunner(testutil.NewTx(t)).InTx(ctx, func(inner repo.Store) error {
		_, err := inner.Guides.Create(ctx, domain.Guide{Name: "A", Rank: domain.RankJunior, Active: true, Email: strPtr("dup@example.com")})
		require.NoError(t, err)
		_, err = inner.Guides.Create(ctx, domain.Guide{Name: "B", Rank: domain.RankJunior, Active: true, Email: strPtr("DUP@example.com")})
		return err
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGuideRepo_InactiveGuidesMayShareEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Guides.Create(ctx, domain.Guide{Name: "Old", Rank: domain.RankTrainee, Active: false, Email: strPtr("x@example.com")})
	require.NoError(t, err)
	active := mustGuide(t, s, "New", domain.RankTrainee, strPtr("x@example.com"))

	found, err := s.Guides.FindGuideByEmail(ctx, "X@example.com")
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	all, err := s.Guides.ListByEmail(ctx, "x@example.com")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGuideRepo_List_ActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustGuide(t, s, "Zulu", domain.RankJunior, nil)
	_, err := s.Guides.Create(ctx, domain.Guide{Name: "Alpha", Rank: domain.RankJunior, Active: false})
	require.NoError(t, err)

	active, err := s.Guides.List(ctx, true)
	require.NoError(t, err)
	for _, g := range active {
		assert.True(t, g.Active)
	}

	all, err := s.Guides.List(ctx, false)
	require.NoError(t, err)
	assert.Greater(t, len(all), len(active))
}

func TestGuideRepo_UpdateClearsEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := mustGuide(t, s, "Sipho", domain.RankIntermediate, strPtr("sipho@example.com"))

	g.Email = nil
	g.Active = false
	updated, err := s.Guides.Update(ctx, g)

	require.NoError(t, err)
	assert.Nil(t, updated.Email)
	assert.False(t, updated.Active)
}

func TestGuideRepo_UsageAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := mustGuide(t, s, "Lerato", domain.RankSenior, nil)

	u, err := s.Guides.Usage(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, u.InUse())

	require.NoError(t, s.Guides.Delete(ctx, g.ID))
	assert.ErrorIs(t, s.Guides.Delete(ctx, g.ID), domain.ErrNotFound)
}

func TestLocker_LockKey(t *testing.T) {
	s := newTestStore(t)

	// Re-entrant within the same transaction.
	require.NoError(t, s.Locks.LockKey(context.Background(), "a@example.com"))
	require.NoError(t, s.Locks.LockKey(context.Background(), "a@example.com"))
}
