package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/luminous-dynamics/hdc/batch"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/resource"
	"github.com/luminous-dynamics/hdc/sequence"
	"github.com/luminous-dynamics/hdc/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seed = hypervector.SeedFromString("batch-test")

// mixedInputs returns n sequences, two in every seven invalid, and the
// invalid indices.
func mixedInputs(n int) ([]string, []int) {
	rng := testutil.NewRNG(11)
	seqs := make([]string, n)
	var bad []int
	for i := range seqs {
		switch {
		case i%7 == 3:
			seqs[i] = "ACGTXACGT"
			bad = append(bad, i)
		case i%7 == 5:
			seqs[i] = "ACG"
			bad = append(bad, i)
		default:
			seqs[i] = rng.Sequence(40 + i%13)
		}
	}
	return seqs, bad
}

func TestEncodeSequencesIsolatesFailures(t *testing.T) {
	seqs, bad := mixedInputs(250)
	res, err := batch.EncodeSequences(context.Background(), seed, seqs, batch.WithChunkSize(16), batch.WithParallelism(4))
	require.NoError(t, err)

	require.Len(t, res.Items, len(seqs))
	assert.Equal(t, len(bad), res.FailedCount)
	assert.Equal(t, len(seqs)-len(bad), res.SuccessCount)
	assert.Equal(t, uint64(len(bad)), res.FailedIndices.GetCardinality())
	for _, i := range bad {
		assert.True(t, res.FailedIndices.Contains(uint32(i)))
		assert.ErrorIs(t, res.Items[i].Err, errdefs.ErrEncoding)
	}
	assert.Equal(t, 16, res.Stats.ChunksProcessed)
	assert.NotEqual(t, uuid.Nil, res.JobID)
	assert.InDelta(t, float64(res.SuccessCount)/250, res.SuccessRate(), 1e-12)
	assert.Len(t, res.Values(), res.SuccessCount)
}

func TestParallelMatchesSequential(t *testing.T) {
	seqs, _ := mixedInputs(300)
	ctx := context.Background()

	par, err := batch.EncodeSequences(ctx, seed, seqs, batch.WithChunkSize(7), batch.WithParallelism(8))
	require.NoError(t, err)
	seq, err := batch.EncodeSequences(ctx, seed, seqs, batch.WithParallel(false))
	require.NoError(t, err)

	require.Equal(t, len(seq.Items), len(par.Items))
	for i := range seqs {
		assert.Equal(t, i, par.Items[i].Index)
		assert.Equal(t, seq.Items[i].OK(), par.Items[i].OK(), "item %d", i)
		if seq.Items[i].OK() {
			assert.True(t, hypervector.Equal(seq.Items[i].Value.Vector, par.Items[i].Value.Vector), "item %d", i)
		}
	}
	assert.True(t, seq.FailedIndices.Equals(par.FailedIndices))
}

func TestResultsMatchDirectEncoding(t *testing.T) {
	rng := testutil.NewRNG(5)
	seqs := []string{rng.Sequence(30), rng.Sequence(50), rng.Sequence(70)}
	enc, err := sequence.NewEncoder(seed, sequence.WithK(4))
	require.NoError(t, err)

	vs, err := batch.NewEncoder(seed, batch.WithK(4), batch.WithChunkSize(1))
	require.NoError(t, err)
	got, err := vs.EncodeToVectors(context.Background(), seqs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, s := range seqs {
		want, err := enc.Encode(s)
		require.NoError(t, err)
		assert.True(t, hypervector.Equal(want.Vector, got[i]))
	}
}

func TestEncodeRecordsKeepsIDs(t *testing.T) {
	e, err := batch.NewEncoder(seed)
	require.NoError(t, err)
	res, err := e.EncodeRecords(context.Background(), []batch.Record{
		{ID: "r1", Sequence: "ACGTACGTAC"},
		{ID: "r2", Sequence: "TTTT"},
		{ID: "r3", Sequence: "GGGCCCAAATTT"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.Items[0].Value.SourceID)
	assert.False(t, res.Items[1].OK())
	assert.Equal(t, "r3", res.Items[2].Value.SourceID)
}

func TestSetupErrorsAbort(t *testing.T) {
	ctx := context.Background()
	for name, opt := range map[string]func(*batch.Options){
		"k":           batch.WithK(0),
		"chunk size":  batch.WithChunkSize(0),
		"parallelism": batch.WithParallelism(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := batch.EncodeSequences(ctx, seed, []string{"ACGTACGT"}, opt)
			require.ErrorIs(t, err, errdefs.ErrConfiguration)
		})
	}
}

func TestEmptyBatch(t *testing.T) {
	res, err := batch.EncodeSequences(context.Background(), seed, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total())
	assert.Equal(t, 0.0, res.SuccessRate())
	assert.Equal(t, 0, res.Stats.ChunksProcessed)
}

func TestEncodeVectorsGeneric(t *testing.T) {
	labels := make([]string, 40)
	for i := range labels {
		labels[i] = fmt.Sprintf("label-%d", i)
	}
	errOdd := errors.New("odd")
	res, err := batch.EncodeVectors(context.Background(), labels, func(s string) (hypervector.Vector, error) {
		var n int
		_, _ = fmt.Sscanf(s, "label-%d", &n)
		if n%2 == 1 {
			return hypervector.Vector{}, errOdd
		}
		return hypervector.Random(seed, s), nil
	}, batch.WithChunkSize(3))
	require.NoError(t, err)
	assert.Equal(t, 20, res.SuccessCount)
	for i, it := range res.Items {
		if i%2 == 1 {
			assert.ErrorIs(t, it.Err, errOdd)
			continue
		}
		assert.True(t, hypervector.Equal(hypervector.Random(seed, labels[i]), it.Value))
	}
}

func TestMapHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	inputs := make([]int, 10_000)
	_, err := batch.Map(ctx, inputs, func(ctx context.Context, _ int) (int, error) {
		if calls.Add(1) == 50 {
			cancel()
		}
		return 0, nil
	}, batch.WithChunkSize(10), batch.WithParallelism(2))
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls.Load(), int32(10_000))
}

func TestResourceControllerBoundsChunks(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 1})
	var active, peak atomic.Int32
	_, err := batch.Map(context.Background(), make([]int, 64), func(_ context.Context, _ int) (int, error) {
		cur := active.Add(1)
		if cur > peak.Load() {
			peak.Store(cur)
		}
		active.Add(-1)
		return 1, nil
	}, batch.WithChunkSize(4), batch.WithParallelism(8), batch.WithResources(rc))
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}
