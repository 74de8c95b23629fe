package variant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/resource"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the number of records per work unit.
	DefaultChunkSize = 10_000

	// DefaultMaxRecordedErrors caps WGSResult.Errors.
	DefaultMaxRecordedErrors = 1000

	// approxRecordBytes is the memory charged per buffered record.
	approxRecordBytes = 256
)

// StreamOptions configures a StreamEncoder.
type StreamOptions struct {
	// ChunkSize is the number of records handed to a worker at once.
	ChunkSize int

	// Workers is the number of goroutines folding chunks. Defaults to
	// GOMAXPROCS.
	Workers int

	// PassOnly keeps only records whose FILTER is PASS.
	PassOnly bool

	// Compression of the input. CompressionAuto sniffs magic bytes.
	Compression Compression

	// MaxRecordedErrors caps the per-line errors kept in the result.
	MaxRecordedErrors int

	// Resources, when set, bounds buffered chunk memory, concurrent
	// workers and read throughput.
	Resources *resource.Controller

	Logger *slog.Logger
}

// DefaultStreamOptions returns the defaults.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		ChunkSize:         DefaultChunkSize,
		Workers:           runtime.GOMAXPROCS(0),
		Compression:       CompressionAuto,
		MaxRecordedErrors: DefaultMaxRecordedErrors,
	}
}

// WithChunkSize sets the records per chunk.
func WithChunkSize(n int) func(*StreamOptions) {
	return func(o *StreamOptions) { o.ChunkSize = n }
}

// WithWorkers sets the worker count.
func WithWorkers(n int) func(*StreamOptions) {
	return func(o *StreamOptions) { o.Workers = n }
}

// WithPassOnly keeps only PASS records.
func WithPassOnly(on bool) func(*StreamOptions) {
	return func(o *StreamOptions) { o.PassOnly = on }
}

// WithCompression fixes the input compression.
func WithCompression(c Compression) func(*StreamOptions) {
	return func(o *StreamOptions) { o.Compression = c }
}

// WithResources attaches a resource controller.
func WithResources(rc *resource.Controller) func(*StreamOptions) {
	return func(o *StreamOptions) { o.Resources = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*StreamOptions) {
	return func(o *StreamOptions) { o.Logger = l }
}

// StreamEncoder encodes whole-genome VCFs in bounded memory. A single
// reader goroutine parses records into chunks; workers fold chunks into
// private partials that are merged once the input is drained. Because
// accumulator merging is associative and commutative the result does not
// depend on chunk size or worker count.
type StreamEncoder struct {
	enc  *Encoder
	opts StreamOptions
}

// NewStreamEncoder validates options and returns a stream encoder.
func NewStreamEncoder(enc *Encoder, optFns ...func(*StreamOptions)) (*StreamEncoder, error) {
	if enc == nil {
		return nil, errdefs.Configuration("encoder", "must not be nil")
	}
	opts := DefaultStreamOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkSize <= 0 {
		return nil, errdefs.Configuration("chunk_size", fmt.Sprintf("must be > 0, got %d", opts.ChunkSize))
	}
	if opts.Workers <= 0 {
		return nil, errdefs.Configuration("workers", fmt.Sprintf("must be > 0, got %d", opts.Workers))
	}
	if opts.MaxRecordedErrors < 0 {
		return nil, errdefs.Configuration("max_recorded_errors", "must be >= 0")
	}
	if err := checkSupported(opts.Compression); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &StreamEncoder{enc: enc, opts: opts}, nil
}

// EncodeFile streams the VCF at path. Compression is inferred from the
// extension unless fixed in the options; .bz2 and .xz fail up front.
func (s *StreamEncoder) EncodeFile(ctx context.Context, path string) (*WGSResult, error) {
	comp := s.opts.Compression
	if comp == CompressionAuto {
		comp = CompressionFromPath(path)
	}
	if err := checkSupported(comp); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.encode(ctx, f, comp)
}

// EncodeBlob streams a VCF from a blob store.
func (s *StreamEncoder) EncodeBlob(ctx context.Context, store blobstore.BlobStore, name string) (*WGSResult, error) {
	comp := s.opts.Compression
	if comp == CompressionAuto {
		comp = CompressionFromPath(name)
	}
	if err := checkSupported(comp); err != nil {
		return nil, err
	}
	rc, err := blobstore.OpenReader(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("open vcf blob %q: %w", name, err)
	}
	defer func() { _ = rc.Close() }()
	return s.encode(ctx, rc, comp)
}

// Encode streams a VCF from r.
func (s *StreamEncoder) Encode(ctx context.Context, r io.Reader) (*WGSResult, error) {
	return s.encode(ctx, r, s.opts.Compression)
}

type chunk struct {
	records []Record
	charged int64
}

func (s *StreamEncoder) encode(ctx context.Context, r io.Reader, comp Compression) (*WGSResult, error) {
	start := time.Now()
	rc := s.opts.Resources

	if rc != nil {
		r = resource.NewRateLimitedReader(ctx, r, rc)
	}
	dr, err := decompress(r, comp)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dr.Close() }()

	vr, err := NewReader(dr)
	if err != nil {
		return nil, err
	}

	res := &WGSResult{ErrorLines: roaring.New()}
	if samples := vr.Samples(); len(samples) > 0 {
		res.Sample = samples[0]
	}

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan chunk, s.opts.Workers)
	workers := make([]*worker, s.opts.Workers)

	for i := range workers {
		w := &worker{partial: NewPartial(), lines: roaring.New()}
		workers[i] = w
		g.Go(func() error {
			for c := range chunks {
				if err := s.fold(gctx, w, c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(chunks)
		return s.read(gctx, vr, chunks, res)
	})

	if err := g.Wait(); err != nil {
		// Chunks left behind by failed workers still hold memory budget.
		for c := range chunks {
			rc.ReleaseMemory(c.charged)
		}
		return nil, err
	}

	merged := workers[0].partial
	for i, w := range workers {
		if i > 0 {
			merged.Merge(w.partial)
		}
		res.ErrorLines.Or(w.lines)
		res.Errors = append(res.Errors, w.errs...)
	}
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Line < res.Errors[j].Line })
	if len(res.Errors) > s.opts.MaxRecordedErrors {
		res.Errors = res.Errors[:s.opts.MaxRecordedErrors]
	}
	if err := merged.finalize(res); err != nil {
		return nil, err
	}

	res.Stats.LinesRead = vr.Line()
	res.Stats.ErrorCount = int(res.ErrorLines.GetCardinality())
	res.Stats.ProcessingTime = time.Since(start)

	s.opts.Logger.LogAttrs(ctx, slog.LevelInfo, "vcf encoded",
		slog.String("sample", res.Sample),
		slog.Int("variants", res.TotalVariants),
		slog.Int("skipped", res.Skipped),
		slog.Int("filtered", res.Filtered),
		slog.Int("errors", res.Stats.ErrorCount),
		slog.Int("chunks", res.Stats.ChunksProcessed),
		slog.Duration("elapsed", res.Stats.ProcessingTime),
	)
	return res, nil
}

// read is the single producer. It records malformed lines itself, so
// only the reader goroutine touches res until Wait returns.
func (s *StreamEncoder) read(ctx context.Context, vr *Reader, out chan<- chunk, res *WGSResult) error {
	rc := s.opts.Resources
	buf := make([]Record, 0, s.opts.ChunkSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c := chunk{records: buf, charged: int64(len(buf)) * approxRecordBytes}
		if err := rc.AcquireMemory(ctx, c.charged); err != nil {
			return err
		}
		select {
		case out <- c:
		case <-ctx.Done():
			rc.ReleaseMemory(c.charged)
			return ctx.Err()
		}
		res.Stats.ChunksProcessed++
		buf = make([]Record, 0, s.opts.ChunkSize)
		return nil
	}

	for {
		rec, err := vr.Next()
		if errors.Is(err, io.EOF) {
			return flush()
		}
		var fe *errdefs.FormatError
		if errors.As(err, &fe) {
			res.ErrorLines.Add(uint32(fe.Line))
			if len(res.Errors) < s.opts.MaxRecordedErrors {
				res.Errors = append(res.Errors, LineError{Line: fe.Line, Err: fe.Error()})
			}
			s.opts.Logger.LogAttrs(ctx, slog.LevelDebug, "malformed vcf line",
				slog.Int("line", fe.Line), slog.String("reason", fe.Reason))
			continue
		}
		if err != nil {
			return fmt.Errorf("read vcf: %w", err)
		}

		res.Stats.RecordsRead++
		buf = append(buf, rec)
		if len(buf) == s.opts.ChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// worker is the state owned by one encoding goroutine. Records that fail
// to encode are kept here and merged into the result after Wait.
type worker struct {
	partial *Partial
	lines   *roaring.Bitmap
	errs    []LineError
}

func (s *StreamEncoder) fold(ctx context.Context, w *worker, c chunk) error {
	rc := s.opts.Resources
	defer rc.ReleaseMemory(c.charged)

	if err := rc.AcquireWorker(ctx); err != nil {
		return err
	}
	defer rc.ReleaseWorker()

	for _, rec := range c.records {
		err := w.partial.Add(s.enc, rec, s.opts.PassOnly)
		if err == nil {
			continue
		}
		w.lines.Add(uint32(rec.Line))
		if len(w.errs) < s.opts.MaxRecordedErrors {
			w.errs = append(w.errs, LineError{Line: rec.Line, Err: err.Error()})
		}
		s.opts.Logger.LogAttrs(ctx, slog.LevelDebug, "vcf record not encoded",
			slog.Int("line", rec.Line), slog.String("error", err.Error()))
	}
	return nil
}
