package codebook

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/luminous-dynamics/hdc/codec"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// FormatVersion is the learned codebook file version this package reads
// and writes.
const FormatVersion = 1

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// File is the on-disk learned codebook.
//
// Patterns hold bit-packed little-endian vectors, base64 encoded.
// Embeddings hold real-valued model outputs that are binarized on load
// (value >= 0 becomes 1). A symbol present in both uses Patterns.
type File struct {
	Version    int                  `json:"version"`
	Dimension  int                  `json:"dimension"`
	KmerLength int                  `json:"kmer_length,omitempty"`
	Patterns   map[string]string    `json:"patterns,omitempty"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

// Learned is an immutable codebook loaded from a trained model.
type Learned struct {
	kmerLength int
	table      map[string]hypervector.Vector
	fallback   Source
}

// LoadOptions configures loading.
type LoadOptions struct {
	// Fallback resolves symbols missing from the file. Nil makes such
	// lookups fail with an UnknownSymbolError.
	Fallback Source

	// Codec decodes the JSON document. Defaults to codec.Default.
	Codec codec.Codec
}

// WithFallback sets the source for symbols missing from the file.
func WithFallback(src Source) func(*LoadOptions) {
	return func(o *LoadOptions) { o.Fallback = src }
}

// WithCodec overrides the decoder.
func WithCodec(c codec.Codec) func(*LoadOptions) {
	return func(o *LoadOptions) { o.Codec = c }
}

// Load reads a codebook document from r. zstd-compressed input is
// detected by its frame magic.
func Load(r io.Reader, optFns ...func(*LoadOptions)) (*Learned, error) {
	opts := LoadOptions{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "codebook", Reason: "invalid zstd frame", Err: err}
		}
		defer dec.Close()
		src = dec
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, &errdefs.FormatError{Source: "codebook", Reason: "read failed", Err: err}
	}

	var f File
	if err := opts.Codec.Unmarshal(data, &f); err != nil {
		return nil, &errdefs.FormatError{Source: "codebook", Reason: "malformed document", Err: err}
	}
	return FromFile(f, opts.Fallback)
}

// LoadFile reads a codebook from path.
func LoadFile(path string, optFns ...func(*LoadOptions)) (*Learned, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, optFns...)
}

// LoadBlob reads a codebook from a blob store.
func LoadBlob(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*LoadOptions)) (*Learned, error) {
	rc, err := blobstore.OpenReader(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("open codebook blob %q: %w", name, err)
	}
	defer func() { _ = rc.Close() }()
	return Load(rc, optFns...)
}

// FromFile validates a decoded document and builds the codebook.
func FromFile(f File, fallback Source) (*Learned, error) {
	if f.Version != FormatVersion {
		return nil, &errdefs.FormatError{Source: "codebook", Reason: fmt.Sprintf("unsupported version %d", f.Version)}
	}
	if f.Dimension != hypervector.Dimension {
		return nil, &errdefs.FormatError{
			Source: "codebook",
			Reason: fmt.Sprintf("dimension mismatch: expected %d, got %d", hypervector.Dimension, f.Dimension),
		}
	}

	table := make(map[string]hypervector.Vector, len(f.Patterns)+len(f.Embeddings))
	for sym, emb := range f.Embeddings {
		v, err := binarize(emb)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "codebook", Reason: fmt.Sprintf("embedding %q: %v", sym, err)}
		}
		table[sym] = v
	}
	for sym, enc := range f.Patterns {
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "codebook", Reason: fmt.Sprintf("pattern %q: invalid base64", sym), Err: err}
		}
		v, err := hypervector.FromBytes(raw)
		if err != nil {
			return nil, &errdefs.FormatError{Source: "codebook", Reason: fmt.Sprintf("pattern %q: wrong length %d", sym, len(raw)), Err: err}
		}
		table[sym] = v
	}

	return &Learned{
		kmerLength: f.KmerLength,
		table:      table,
		fallback:   fallback,
	}, nil
}

func binarize(emb []float32) (hypervector.Vector, error) {
	if len(emb) != hypervector.Dimension {
		return hypervector.Vector{}, fmt.Errorf("expected %d values, got %d", hypervector.Dimension, len(emb))
	}
	words := make([]uint64, hypervector.Words)
	for i, x := range emb {
		if x >= 0 {
			words[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return hypervector.FromWords(words)
}

// Get returns the learned vector for symbol, consulting the fallback for
// symbols the model does not cover.
func (l *Learned) Get(symbol string) (hypervector.Vector, error) {
	if v, ok := l.table[symbol]; ok {
		return v, nil
	}
	if l.fallback != nil {
		return l.fallback.Get(symbol)
	}
	return hypervector.Vector{}, &errdefs.UnknownSymbolError{Kind: "codebook symbol", Symbol: symbol}
}

// Contains reports whether symbol has a learned entry.
func (l *Learned) Contains(symbol string) bool {
	_, ok := l.table[symbol]
	return ok
}

// KmerLength is the k the model was trained for, or 0 if unspecified.
func (l *Learned) KmerLength() int { return l.kmerLength }

// Len returns the number of learned entries.
func (l *Learned) Len() int { return len(l.table) }

// Symbols returns the learned symbols in sorted order.
func (l *Learned) Symbols() []string {
	out := make([]string, 0, len(l.table))
	for s := range l.table {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Export returns the codebook as a File with every entry as a pattern.
func (l *Learned) Export() File {
	f := File{
		Version:    FormatVersion,
		Dimension:  hypervector.Dimension,
		KmerLength: l.kmerLength,
		Patterns:   make(map[string]string, len(l.table)),
	}
	for sym, v := range l.table {
		f.Patterns[sym] = base64.StdEncoding.EncodeToString(v.Bytes())
	}
	return f
}

// Save writes the codebook to w, zstd-compressed when compress is set.
func (l *Learned) Save(w io.Writer, compress bool) error {
	data, err := codec.Default.Marshal(l.Export())
	if err != nil {
		return fmt.Errorf("marshal codebook: %w", err)
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}
