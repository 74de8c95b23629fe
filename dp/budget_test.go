package dp_test

import (
	"sync"
	"testing"

	"github.com/luminous-dynamics/hdc/dp"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetSequence(t *testing.T) {
	b, err := dp.NewBudget(5)
	require.NoError(t, err)

	require.NoError(t, b.Consume(1))
	require.NoError(t, b.Consume(2))
	require.NoError(t, b.Consume(1.5))
	assert.InDelta(t, 0.5, b.Remaining(), 1e-12)
	assert.InDelta(t, 0.9, b.Utilization(), 1e-12)
	assert.True(t, b.CanQuery(0.5))
	assert.False(t, b.CanQuery(1))

	err = b.Consume(1)
	require.ErrorIs(t, err, errdefs.ErrBudgetExhausted)
	require.ErrorIs(t, err, errdefs.ErrPrivacyBudget)
	assert.Equal(t, 3, b.Queries())
	assert.InDelta(t, 4.5, b.Consumed(), 1e-12)

	b.Reset()
	assert.Equal(t, 5.0, b.Remaining())
	assert.Equal(t, 0, b.Queries())
}

func TestBudgetRejectsInvalidAmounts(t *testing.T) {
	_, err := dp.NewBudget(0)
	require.ErrorIs(t, err, errdefs.ErrPrivacyBudget)

	b, _ := dp.NewBudget(1)
	require.ErrorIs(t, b.Consume(-1), errdefs.ErrPrivacyBudget)
	require.NotErrorIs(t, b.Consume(-1), errdefs.ErrBudgetExhausted)
	assert.Equal(t, 0.0, b.Consumed())
}

func TestBudgetPrivatize(t *testing.T) {
	b, _ := dp.NewBudget(1.5)
	v := hypervector.Random(seed, "patient")

	hv, err := b.Privatize(v, dp.Pure(1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, hv.Epsilon())

	_, err = b.Privatize(v, dp.Pure(0))
	require.ErrorIs(t, err, errdefs.ErrPrivacyBudget)
	assert.Equal(t, 1, b.Queries(), "invalid params spend nothing")

	_, err = b.Privatize(v, dp.Pure(1))
	require.ErrorIs(t, err, errdefs.ErrBudgetExhausted)
}

func TestBudgetConcurrentConsume(t *testing.T) {
	b, _ := dp.NewBudget(10)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Consume(0.5) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ok)
	assert.InDelta(t, 10.0, b.Consumed(), 1e-9)
}
