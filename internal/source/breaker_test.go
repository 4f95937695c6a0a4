package source_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/dining-watcher/internal/source"
	"github.com/example/dining-watcher/internal/subscription"
)

type flakySource struct {
	calls atomic.Int64
	err   error
	slots []source.Slot
}

func (f *flakySource) CheckAvailability(context.Context, subscription.ResourceRef, subscription.Criteria) ([]source.Slot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.slots, nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &flakySource{slots: []source.Slot{{Time: "6:30 PM", Ref: "x1"}}}
	b := source.NewBreaker(inner)

	res, crit := criteria()
	slots, err := b.CheckAvailability(context.Background(), res, crit)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakySource{err: source.ErrUnavailable}
	b := source.NewBreaker(inner)

	res, crit := criteria()
	for i := 0; i < 10; i++ {
		_, err := b.CheckAvailability(context.Background(), res, crit)
		require.Error(t, err)
	}

	// The breaker tripped; later calls fail fast without reaching the
	// upstream.
	before := inner.calls.Load()
	_, err := b.CheckAvailability(context.Background(), res, crit)
	assert.ErrorIs(t, err, source.ErrUnavailable)
	assert.Equal(t, before, inner.calls.Load())
}
