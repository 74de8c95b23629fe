package codebook_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/luminous-dynamics/hdc/codebook"
	"github.com/luminous-dynamics/hdc/codec"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seed = hypervector.SeedFromString("codebook-test")

func TestProceduralIsDeterministic(t *testing.T) {
	a := codebook.NewProcedural(seed)
	b := codebook.NewProcedural(hypervector.SeedFromString("codebook-test"))

	va, err := a.Get("ACGTAC")
	require.NoError(t, err)
	vb, err := b.Get("ACGTAC")
	require.NoError(t, err)

	assert.True(t, hypervector.Equal(va, vb))
	assert.True(t, hypervector.Equal(va, hypervector.Random(seed, "ACGTAC")))
	assert.Equal(t, seed, a.Seed())
}

func TestProceduralCachesOnce(t *testing.T) {
	cb := codebook.NewProcedural(seed)

	var wg sync.WaitGroup
	results := make([]hypervector.Vector, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cb.Vector(fmt.Sprintf("sym-%d", i%4))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, cb.Len())
	for i, v := range results {
		assert.True(t, hypervector.Equal(v, results[i%4]))
	}
}

func TestNamespaceSeparatesSymbols(t *testing.T) {
	cb := codebook.NewProcedural(seed)
	gene := codebook.Namespace(cb, "GENE:")
	locus := codebook.Namespace(cb, "HLA:")

	g, err := gene.Get("A")
	require.NoError(t, err)
	l, err := locus.Get("A")
	require.NoError(t, err)

	assert.False(t, hypervector.Equal(g, l))
	assert.True(t, hypervector.Equal(g, cb.Vector("GENE:A")))
	assert.Same(t, cb, codebook.Namespace(cb, "").(*codebook.Procedural))
}

func learnedFile(t *testing.T) codebook.File {
	t.Helper()
	emb := make([]float32, hypervector.Dimension)
	for i := range emb {
		if i%3 == 0 {
			emb[i] = 0.25
		} else {
			emb[i] = -0.5
		}
	}
	return codebook.File{
		Version:    codebook.FormatVersion,
		Dimension:  hypervector.Dimension,
		KmerLength: 6,
		Patterns: map[string]string{
			"AAAAAA": base64.StdEncoding.EncodeToString(hypervector.Random(seed, "learned").Bytes()),
		},
		Embeddings: map[string][]float32{"CCCCCC": emb},
	}
}

func TestLearnedLoad(t *testing.T) {
	data := codec.MustMarshal(nil, learnedFile(t))

	cb, err := codebook.Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 6, cb.KmerLength())
	assert.Equal(t, 2, cb.Len())
	assert.Equal(t, []string{"AAAAAA", "CCCCCC"}, cb.Symbols())

	v, err := cb.Get("AAAAAA")
	require.NoError(t, err)
	assert.True(t, hypervector.Equal(hypervector.Random(seed, "learned"), v))

	emb, err := cb.Get("CCCCCC")
	require.NoError(t, err)
	assert.True(t, emb.Bit(0))
	assert.False(t, emb.Bit(1))
	assert.True(t, emb.Bit(3))
	assert.Equal(t, (hypervector.Dimension+2)/3, emb.Popcount())

	_, err = cb.Get("GGGGGG")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)
}

func TestLearnedFallback(t *testing.T) {
	fallback := codebook.NewProcedural(seed)
	data := codec.MustMarshal(nil, learnedFile(t))

	cb, err := codebook.Load(bytes.NewReader(data), codebook.WithFallback(fallback), codebook.WithCodec(codec.JSON{}))
	require.NoError(t, err)

	v, err := cb.Get("GGGGGG")
	require.NoError(t, err)
	assert.True(t, hypervector.Equal(fallback.Vector("GGGGGG"), v))
	assert.False(t, cb.Contains("GGGGGG"))
	assert.True(t, cb.Contains("AAAAAA"))
}

func TestLearnedRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*codebook.File)
	}{
		{"wrong dimension", func(f *codebook.File) { f.Dimension = 1000 }},
		{"wrong version", func(f *codebook.File) { f.Version = 9 }},
		{"bad base64", func(f *codebook.File) { f.Patterns["AAAAAA"] = "!!not-base64!!" }},
		{"short pattern", func(f *codebook.File) { f.Patterns["AAAAAA"] = base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) }},
		{"short embedding", func(f *codebook.File) { f.Embeddings["CCCCCC"] = []float32{1, -1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := learnedFile(t)
			tt.mutate(&f)
			_, err := codebook.Load(bytes.NewReader(codec.MustMarshal(nil, f)))
			require.ErrorIs(t, err, errdefs.ErrFormat)
		})
	}

	_, err := codebook.Load(strings.NewReader("{not json"))
	require.ErrorIs(t, err, errdefs.ErrFormat)
}

func TestLearnedSaveRoundTrip(t *testing.T) {
	cb, err := codebook.FromFile(learnedFile(t), nil)
	require.NoError(t, err)

	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, cb.Save(&buf, compress))
			if compress {
				assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, buf.Bytes()[:4])
			}

			back, err := codebook.Load(&buf)
			require.NoError(t, err)
			assert.Equal(t, cb.Symbols(), back.Symbols())
			for _, sym := range cb.Symbols() {
				want, _ := cb.Get(sym)
				got, _ := back.Get(sym)
				assert.True(t, hypervector.Equal(want, got), sym)
			}
		})
	}
}

func TestLearnedLoadFileAndBlob(t *testing.T) {
	cb, err := codebook.FromFile(learnedFile(t), nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, cb.Save(&buf, true))

	path := filepath.Join(t.TempDir(), "k6.json.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	fromFile, err := codebook.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, fromFile.Len())

	_, err = codebook.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "codebooks/k6.json.zst", buf.Bytes()))

	fromBlob, err := codebook.LoadBlob(ctx, store, "codebooks/k6.json.zst")
	require.NoError(t, err)
	assert.Equal(t, fromFile.Symbols(), fromBlob.Symbols())

	_, err = codebook.LoadBlob(ctx, store, "absent")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
