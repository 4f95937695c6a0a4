package subscription_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/dining-watcher/internal/db"
	"github.com/example/dining-watcher/internal/subscription"
)

func openTestStore(t *testing.T) *subscription.SQLiteStore {
	t.Helper()
	store, err := subscription.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteAddAssignsIDAndActivates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, validSub())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)
	assert.Equal(t, "user-1", got.Owner)
	assert.Equal(t, 4, got.Criteria.PartySize)
	assert.Equal(t, subscription.MealDinner, got.Criteria.MealPeriod)
	assert.Equal(t, "2027-12-25", got.Criteria.Date.Format("2006-01-02"))
	assert.Nil(t, got.LastCheckedAt)
	assert.Nil(t, got.ResolvedAt)
}

func TestSQLiteAddRejectsInvalidWithoutPersisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	bad := validSub()
	bad.Criteria.PartySize = 0

	_, err := store.Add(ctx, bad)
	var verr *subscription.ValidationError
	require.ErrorAs(t, err, &verr)

	subs, err := store.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs, "a rejected subscription is never persisted")
}

func TestSQLiteActiveExcludesResolved(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, validSub())
	require.NoError(t, err)
	second := validSub()
	second.Owner = "user-2"
	_, err = store.Add(ctx, second)
	require.NoError(t, err)

	require.NoError(t, store.MarkResolved(ctx, first))

	subs, err := store.Active(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "user-2", subs[0].Owner)
}

func TestSQLiteMarkResolvedIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, validSub())
	require.NoError(t, err)

	require.NoError(t, store.MarkResolved(ctx, id))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	firstResolved := *got.ResolvedAt

	// Second mark is a no-op, not an error, and does not move resolved_at.
	require.NoError(t, store.MarkResolved(ctx, id))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusResolved, got.Status)
	assert.True(t, got.ResolvedAt.Equal(firstResolved))
}

func TestSQLiteTouchCheckedIndependentOfResolution(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, validSub())
	require.NoError(t, err)

	at := time.Date(2027, 6, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.TouchChecked(ctx, id, at))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, got.LastCheckedAt.Equal(at))
	assert.Equal(t, subscription.StatusActive, got.Status)
}

func TestSQLiteListByOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, validSub())
	require.NoError(t, err)
	other := validSub()
	other.Owner = "user-2"
	_, err = store.Add(ctx, other)
	require.NoError(t, err)

	subs, err := store.ListByOwner(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "user-2", subs[0].Owner)
}

func TestSQLiteGetUnknownIDReturnsNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, db.ErrNotFound))
}
