package hdc

import (
	"context"
	"io"
	"time"

	"github.com/luminous-dynamics/hdc/batch"
	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/luminous-dynamics/hdc/dp"
	"github.com/luminous-dynamics/hdc/hla"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/pgx"
	"github.com/luminous-dynamics/hdc/sequence"
	"github.com/luminous-dynamics/hdc/similarity"
	"github.com/luminous-dynamics/hdc/variant"
)

// Core binds every encoder to one seed. It is safe for concurrent use.
type Core struct {
	fingerprint string

	sequence *sequence.Encoder
	variant  *variant.Encoder
	stream   *variant.StreamEncoder
	batch    *batch.Encoder
	pgx      *pgx.Encoder
	ancestry *pgx.AncestryEncoder
	hla      *hla.Encoder
	backend  similarity.Backend
	budget   *dp.Budget

	logger  *Logger
	metrics MetricsCollector
}

// New builds a Core. Invalid encoder options abort with ErrConfiguration.
func New(ctx context.Context, seed hypervector.Seed, optFns ...Option) (*Core, error) {
	o := applyOptions(optFns)
	c := &Core{
		fingerprint: seed.Fingerprint(),
		metrics:     o.metricsCollector,
	}
	c.logger = o.logger.WithSeed(c.fingerprint)
	slogger := c.logger.Logger

	var err error
	if c.sequence, err = sequence.NewEncoder(seed, o.sequenceOptions...); err != nil {
		return nil, err
	}
	if c.variant, err = variant.NewEncoder(seed, o.variantOptions...); err != nil {
		return nil, err
	}
	streamOpts := append([]func(*variant.StreamOptions){
		variant.WithResources(o.resources),
		variant.WithLogger(slogger),
	}, o.streamOptions...)
	if c.stream, err = variant.NewStreamEncoder(c.variant, streamOpts...); err != nil {
		return nil, err
	}

	batchOpts := append([]func(*batch.Options){
		batch.WithK(c.sequence.K()),
		batch.WithSequenceOptions(o.sequenceOptions...),
		batch.WithResources(o.resources),
		batch.WithLogger(slogger),
	}, o.batchOptions...)
	if c.batch, err = batch.NewEncoder(seed, batchOpts...); err != nil {
		return nil, err
	}

	if c.pgx, err = pgx.NewEncoder(seed, o.pgxOptions...); err != nil {
		return nil, err
	}
	c.ancestry = pgx.NewAncestryEncoder(c.pgx)
	if c.hla, err = hla.NewEncoder(seed, o.hlaOptions...); err != nil {
		return nil, err
	}

	if o.privacyBudget != 0 {
		if c.budget, err = dp.NewBudget(o.privacyBudget); err != nil {
			return nil, err
		}
	}

	c.backend = o.backend
	if c.backend == nil {
		selectOpts := append([]func(*similarity.SelectOptions){
			similarity.WithSelectLogger(slogger),
		}, o.selectOptions...)
		c.backend = similarity.Select(ctx, selectOpts...)
	}
	c.logger.DebugContext(ctx, "core ready",
		"k", c.sequence.K(),
		"backend", c.backend.Name(),
	)
	return c, nil
}

// Fingerprint identifies the seed without revealing it.
func (c *Core) Fingerprint() string { return c.fingerprint }

// Backend returns the selected similarity backend.
func (c *Core) Backend() similarity.Backend { return c.backend }

// Budget returns the privacy budget, or nil when releases are unmetered.
func (c *Core) Budget() *dp.Budget { return c.budget }

// PGx returns the PGx encoder, for drug interaction prediction.
func (c *Core) PGx() *pgx.Encoder { return c.pgx }

// Ancestry returns the ancestry-aware PGx encoder, for dosing guidance.
func (c *Core) Ancestry() *pgx.AncestryEncoder { return c.ancestry }

// HLA returns the HLA encoder, for compatibility and donor ranking.
func (c *Core) HLA() *hla.Encoder { return c.hla }

func (c *Core) observeEncode(ctx context.Context, kind string, start time.Time, err error) error {
	err = translateError(err)
	c.metrics.RecordEncode(kind, time.Since(start), err)
	c.logger.LogEncode(ctx, kind, err)
	return err
}

// ── Encoding ────────────────────────────────────────────────────────────────

// EncodeSequence encodes one DNA or RNA sequence.
func (c *Core) EncodeSequence(ctx context.Context, seq string) (sequence.Encoded, error) {
	start := time.Now()
	enc, err := c.sequence.Encode(seq)
	return enc, c.observeEncode(ctx, "sequence", start, err)
}

// EncodeSequences encodes a batch. Failures are reported per item; only
// cancellation or setup errors fail the call.
func (c *Core) EncodeSequences(ctx context.Context, seqs []string) (*batch.Result[sequence.Encoded], error) {
	start := time.Now()
	res, err := c.batch.EncodeSequences(ctx, seqs)
	if err != nil {
		return nil, translateError(err)
	}
	c.metrics.RecordBatch(res.Total(), res.FailedCount, time.Since(start))
	c.logger.LogBatch(ctx, res.JobID.String(), res.Total(), res.FailedCount)
	return res, nil
}

// EncodeRecords encodes labelled sequences as a batch.
func (c *Core) EncodeRecords(ctx context.Context, records []batch.Record) (*batch.Result[sequence.Encoded], error) {
	start := time.Now()
	res, err := c.batch.EncodeRecords(ctx, records)
	if err != nil {
		return nil, translateError(err)
	}
	c.metrics.RecordBatch(res.Total(), res.FailedCount, time.Since(start))
	c.logger.LogBatch(ctx, res.JobID.String(), res.Total(), res.FailedCount)
	return res, nil
}

// EncodeVCF streams a VCF document, optionally gzip or zstd compressed.
func (c *Core) EncodeVCF(ctx context.Context, r io.Reader) (*variant.WGSResult, error) {
	start := time.Now()
	res, err := c.stream.Encode(ctx, r)
	return c.observeStream(ctx, start, res, err)
}

// EncodeVCFFile streams a VCF file. Compression is taken from the file
// extension.
func (c *Core) EncodeVCFFile(ctx context.Context, path string) (*variant.WGSResult, error) {
	start := time.Now()
	res, err := c.stream.EncodeFile(ctx, path)
	return c.observeStream(ctx, start, res, err)
}

// EncodeVCFBlob streams a VCF held in a blob store.
func (c *Core) EncodeVCFBlob(ctx context.Context, store blobstore.BlobStore, name string) (*variant.WGSResult, error) {
	start := time.Now()
	res, err := c.stream.EncodeBlob(ctx, store, name)
	return c.observeStream(ctx, start, res, err)
}

func (c *Core) observeStream(ctx context.Context, start time.Time, res *variant.WGSResult, err error) (*variant.WGSResult, error) {
	err = translateError(err)
	if err != nil {
		c.metrics.RecordStream(0, 0, time.Since(start), err)
		c.logger.LogStream(ctx, "", 0, 0, err)
		return nil, err
	}
	c.metrics.RecordStream(res.TotalVariants, res.Stats.ErrorCount, time.Since(start), nil)
	c.logger.LogStream(ctx, res.Sample, res.TotalVariants, res.Stats.ErrorCount, nil)
	return res, nil
}

// EncodeDiplotype encodes one star-allele call.
func (c *Core) EncodeDiplotype(ctx context.Context, gene, allele1, allele2 string) (pgx.Diplotype, error) {
	start := time.Now()
	d, err := c.pgx.EncodeDiplotype(gene, allele1, allele2)
	return d, c.observeEncode(ctx, "diplotype", start, err)
}

// EncodePGxProfile encodes a set of star-allele calls.
func (c *Core) EncodePGxProfile(ctx context.Context, calls []pgx.Call) (pgx.Profile, error) {
	start := time.Now()
	p, err := c.pgx.EncodeProfile(calls)
	return p, c.observeEncode(ctx, "pgx_profile", start, err)
}

// EncodeAncestryProfile encodes calls with population context.
func (c *Core) EncodeAncestryProfile(ctx context.Context, calls []pgx.Call, a pgx.Ancestry) (pgx.AncestryProfile, error) {
	start := time.Now()
	p, err := c.ancestry.EncodeProfile(calls, a)
	return p, c.observeEncode(ctx, "ancestry_profile", start, err)
}

// EncodeHLA encodes a ten-allele HLA typing.
func (c *Core) EncodeHLA(ctx context.Context, alleles []string) (hla.Typing, error) {
	start := time.Now()
	t, err := c.hla.Encode(alleles)
	return t, c.observeEncode(ctx, "hla", start, err)
}

// ── Privacy ─────────────────────────────────────────────────────────────────

// Privatize releases v under params with fresh noise. With a budget, ε is
// spent before noise is drawn and a release that does not fit fails with
// ErrBudgetExhausted.
func (c *Core) Privatize(ctx context.Context, v hypervector.Vector, params dp.Params) (*dp.Hypervector, error) {
	var (
		priv *dp.Hypervector
		err  error
	)
	if c.budget != nil {
		priv, err = c.budget.Privatize(v, params)
	} else {
		priv, err = dp.FromHypervector(v, params)
	}
	err = translateError(err)
	c.metrics.RecordPrivatize(params.Epsilon, err)
	c.logger.LogPrivatize(ctx, params.Epsilon, err)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// ── Similarity ──────────────────────────────────────────────────────────────

// Similarity scores query against every database entry.
func (c *Core) Similarity(ctx context.Context, query hypervector.Vector, database []hypervector.Vector) ([]float64, error) {
	start := time.Now()
	scores, err := c.backend.BatchSimilarity(ctx, query, database)
	return scores, c.observeSimilarity(ctx, start, len(database), err)
}

// TopK returns the k most similar database entries, best first.
func (c *Core) TopK(ctx context.Context, query hypervector.Vector, database []hypervector.Vector, k int) ([]similarity.Match, error) {
	start := time.Now()
	ms, err := similarity.TopK(ctx, c.backend, query, database, k)
	return ms, c.observeSimilarity(ctx, start, len(database), err)
}

// Pairwise computes the symmetric similarity matrix of vectors.
func (c *Core) Pairwise(ctx context.Context, vectors []hypervector.Vector) (*similarity.Matrix, error) {
	start := time.Now()
	n := len(vectors)
	m, err := similarity.Pairwise(ctx, c.backend, vectors)
	return m, c.observeSimilarity(ctx, start, n*(n-1)/2, err)
}

// NewIndex returns an empty index searched with the selected backend.
func (c *Core) NewIndex() *similarity.Index {
	return similarity.NewIndex(c.backend)
}

func (c *Core) observeSimilarity(ctx context.Context, start time.Time, comparisons int, err error) error {
	err = translateError(err)
	c.metrics.RecordSimilarity(comparisons, time.Since(start), err)
	c.logger.LogSimilarity(ctx, c.backend.Name(), comparisons, err)
	return err
}
