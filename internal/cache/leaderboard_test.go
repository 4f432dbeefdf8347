package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightOrdering(t *testing.T) {
	assert.Greater(t, Weight(90, 600), Weight(89.99, 1))
	assert.Greater(t, Weight(90, 100), Weight(90, 600))
	assert.Equal(t, Weight(90, -5), Weight(90, 0))
	assert.Equal(t, Weight(90, maxTime+50), Weight(90, maxTime))
	assert.Greater(t, Weight(0, 10), Weight(0, 20))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "leaderboard:test:42", Key(42))
}

func TestNoopLeaderboard(t *testing.T) {
	lb := NewNoopLeaderboard()
	assert.NoError(t, lb.Record(context.Background(), 1, 2, 10, 30))
	ids, err := lb.Top(context.Background(), 1, 10)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}
