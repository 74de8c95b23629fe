package pgx_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
	"github.com/luminous-dynamics/hdc/pgx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEncoder(t *testing.T, opts ...func(*pgx.Options)) *pgx.Encoder {
	t.Helper()
	enc, err := pgx.NewEncoder(hypervector.SeedFromString("pgx-test"), opts...)
	require.NoError(t, err)
	return enc
}

func TestPhenotypeBands(t *testing.T) {
	enc := newEncoder(t)

	tests := []struct {
		gene, a1, a2 string
		activity     float64
		want         pgx.Phenotype
	}{
		{"CYP2D6", "*1", "*1", 2.0, pgx.Normal},
		{"CYP2D6", "*1xN", "*1", 3.0, pgx.Ultrarapid},
		{"CYP2D6", "*1", "*4", 1.0, pgx.Intermediate},
		{"CYP2D6", "*10", "*4", 0.25, pgx.Intermediate},
		{"CYP2D6", "*4", "*4", 0, pgx.Poor},
		{"CYP2C19", "*17", "*17", 3.0, pgx.Ultrarapid},
		{"CYP2C19", "*2", "*17", 1.5, pgx.RapidToNormal},
		{"CYP2C19", "*1", "*2", 1.0, pgx.Normal},
		{"CYP2C19", "*2", "*3", 0, pgx.Poor},
		{"CYP2C9", "*1", "*1", 2.0, pgx.Normal},
		{"CYP2C9", "*1", "*3", 1.0, pgx.Intermediate},
		{"CYP2C9", "*2", "*3", 0.5, pgx.Intermediate},
		{"CYP2C9", "*3", "*3", 0, pgx.Poor},
		{"TPMT", "*1", "*3A", 1.0, pgx.Intermediate},
		{"DPYD", "*1", "c.2846A>T", 1.5, pgx.Normal},
		{"VKORC1", "A", "A", 1.0, pgx.Intermediate},
	}
	for _, tt := range tests {
		t.Run(tt.gene+tt.a1+tt.a2, func(t *testing.T) {
			d, err := enc.EncodeDiplotype(tt.gene, tt.a1, tt.a2)
			require.NoError(t, err)
			assert.InDelta(t, tt.activity, d.ActivityScore, 1e-9)
			assert.Equal(t, tt.want, d.Phenotype)
		})
	}
}

func TestDiplotypeIsOrderIndependent(t *testing.T) {
	enc := newEncoder(t)

	a, err := enc.EncodeDiplotype("CYP2D6", "*1", "*4")
	require.NoError(t, err)
	b, err := enc.EncodeDiplotype("CYP2D6", "*4", "*1")
	require.NoError(t, err)

	assert.True(t, hypervector.Equal(a.Vector, b.Vector))
	assert.Equal(t, "*1", b.Allele1)
	assert.Equal(t, "*4", b.Allele2)
	assert.Equal(t, "CYP2D6 *1/*4", b.Notation())

	c, err := enc.EncodeDiplotype("CYP2D6", "*10", "*2")
	require.NoError(t, err)
	assert.Equal(t, "CYP2D6 *2/*10", c.Notation(), "star numbers sort numerically")
}

func TestDiplotypeVectorsSeparateGenesAndAlleles(t *testing.T) {
	enc := newEncoder(t)

	same, _ := enc.EncodeDiplotype("CYP2D6", "*1", "*4")
	shared, _ := enc.EncodeDiplotype("CYP2D6", "*1", "*10")
	other, _ := enc.EncodeDiplotype("CYP2C19", "*1", "*2")

	// A two-vector bundle is the AND of its inputs: sharing one bound
	// allele agrees on ~75% of bits, unrelated diplotypes on ~62.5%.
	assert.InDelta(t, 0.75, hypervector.Similarity(same.Vector, shared.Vector), 0.03)
	assert.InDelta(t, 0.625, hypervector.Similarity(same.Vector, other.Vector), 0.03)
}

func TestUnknownSymbolsFailClosed(t *testing.T) {
	enc := newEncoder(t)

	_, err := enc.EncodeDiplotype("CYP9Z9", "*1", "*1")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)

	_, err = enc.EncodeDiplotype("CYP2D6", "*1", "*999")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)
	var use *errdefs.UnknownSymbolError
	require.ErrorAs(t, err, &use)
	assert.Equal(t, "allele", use.Kind)
	assert.Equal(t, "CYP2D6", use.Scope)
}

func TestEncodeProfile(t *testing.T) {
	enc := newEncoder(t)

	p, err := enc.EncodeProfile([]pgx.Call{
		{Gene: "CYP2D6", Allele1: "*4", Allele2: "*4"},
		{Gene: "CYP2C19", Allele1: "*1", Allele2: "*2"},
		{Gene: "TPMT", Allele1: "*1", Allele2: "*1"},
	})
	require.NoError(t, err)
	require.Len(t, p.Diplotypes, 3)

	assert.Equal(t, []string{"CYP2D6"}, p.PoorMetabolizerGenes())
	for _, d := range p.Diplotypes {
		assert.Greater(t, hypervector.Similarity(p.Vector, d.Vector), 0.75, d.Gene)
	}
	assert.Contains(t, p.Summary(), "CYP2D6 *4/*4: Poor Metabolizer (activity 0.00)")

	sims := p.GeneSimilarity(p)
	assert.Len(t, sims, 3)
	assert.Equal(t, 1.0, sims["TPMT"])

	_, err = enc.EncodeProfile(nil)
	require.ErrorIs(t, err, errdefs.ErrEncoding)

	_, err = enc.EncodeProfile([]pgx.Call{
		{Gene: "TPMT", Allele1: "*1", Allele2: "*1"},
		{Gene: "TPMT", Allele1: "*1", Allele2: "*2"},
	})
	require.ErrorIs(t, err, errdefs.ErrEncoding)

	_, err = enc.EncodeProfile([]pgx.Call{{Gene: "TPMT", Allele1: "*1", Allele2: "*99"}})
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)
}

func TestParseCall(t *testing.T) {
	c, err := pgx.ParseCall("CYP2D6 *1/*4")
	require.NoError(t, err)
	assert.Equal(t, pgx.Call{Gene: "CYP2D6", Allele1: "*1", Allele2: "*4"}, c)

	c, err = pgx.ParseCall("CYP2C19*2/*17")
	require.NoError(t, err)
	assert.Equal(t, pgx.Call{Gene: "CYP2C19", Allele1: "*2", Allele2: "*17"}, c)

	for _, bad := range []string{"", "CYP2D6", "CYP2D6 *1", "CYP2D6 *1/"} {
		_, err := pgx.ParseCall(bad)
		require.ErrorIs(t, err, errdefs.ErrFormat, bad)
	}
}

// ── Drug interactions ───────────────────────────────────────────────────────

func TestPredictInteractions(t *testing.T) {
	enc := newEncoder(t)
	p, err := enc.EncodeProfile([]pgx.Call{
		{Gene: "CYP2D6", Allele1: "*4", Allele2: "*4"},
		{Gene: "CYP2C19", Allele1: "*1", Allele2: "*2"},
		{Gene: "CYP3A5", Allele1: "*3", Allele2: "*3"},
		{Gene: "TPMT", Allele1: "*1", Allele2: "*3A"},
	})
	require.NoError(t, err)

	tests := []struct {
		drug string
		gene string
		want pgx.Recommendation
	}{
		{"codeine", "CYP2D6", pgx.Avoid},
		{"Clopidogrel", "CYP2C19", pgx.StandardDose},
		{"tacrolimus", "CYP3A5", pgx.StandardDose},
		{"azathioprine", "TPMT", pgx.ReducedDose},
	}
	for _, tt := range tests {
		rec, err := enc.PredictInteractions(p, tt.drug)
		require.NoError(t, err, tt.drug)
		assert.Equal(t, tt.gene, rec.Gene)
		assert.Equal(t, tt.want, rec.Recommendation, tt.drug)
		assert.Equal(t, strings.ToLower(tt.drug), rec.Drug)
		assert.NotEmpty(t, rec.Rationale)
	}

	_, err = enc.PredictInteractions(p, "aspirin")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)

	_, err = enc.PredictInteractions(p, "warfarin")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol, "CYP2C9 missing from profile")

	all := enc.PredictAll(p)
	assert.NotEmpty(t, all)
	for _, r := range all {
		_, ok := p.Diplotype(r.Gene)
		assert.True(t, ok)
	}
}

func TestRecommendationRulesByGene(t *testing.T) {
	tables := pgx.DefaultTables()

	assert.Equal(t, pgx.ConsiderAlternative, tables.Genes["CYP2D6"].Recommend(pgx.Ultrarapid))
	assert.Equal(t, pgx.UseWithCaution, tables.Genes["CYP2D6"].Recommend(pgx.Intermediate))
	assert.Equal(t, pgx.ConsiderAlternative, tables.Genes["CYP2C19"].Recommend(pgx.RapidToNormal))
	assert.Equal(t, pgx.ReducedDose, tables.Genes["CYP2C9"].Recommend(pgx.Intermediate))
	assert.Equal(t, pgx.ConsiderAlternative, tables.Genes["CYP3A5"].Recommend(pgx.Normal))
	assert.Equal(t, pgx.ReducedDose, tables.Genes["CYP2B6"].Recommend(pgx.Poor))
	assert.Equal(t, pgx.ReducedDose, tables.Genes["VKORC1"].Recommend(pgx.Poor))
	assert.Equal(t, pgx.Avoid, tables.Genes["DPYD"].Recommend(pgx.Poor))
	assert.Equal(t, pgx.InsufficientEvidence, tables.Genes["TPMT"].Recommend(pgx.Ultrarapid))
}

// ── Tables ──────────────────────────────────────────────────────────────────

func TestDefaultTables(t *testing.T) {
	tables := pgx.DefaultTables()
	require.NoError(t, tables.Validate())

	assert.Len(t, tables.GeneNames(), 11)
	assert.Contains(t, tables.SupportedDrugs(), "5-fu")

	gene, err := tables.DrugGene("  Warfarin ")
	require.NoError(t, err)
	assert.Equal(t, "CYP2C9", gene)

	v, err := tables.AlleleActivity("CYP2D6", "*10")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	// Each call returns an independent copy.
	tables.Genes["CYP2D6"].Alleles["*10"] = 1
	fresh, _ := pgx.DefaultTables().AlleleActivity("CYP2D6", "*10")
	assert.Equal(t, 0.25, fresh)
}

const customTables = `
genes:
  GENEX:
    rule: min
    alleles:
      "*1": 1
      "*2": 0.5
    bands:
      - {phenotype: NM, min: 1, inclusive: true}
      - {phenotype: IM, min: 0.5, inclusive: true}
    recommendations:
      NM: standard
      IM: caution
  GENEY:
    alleles:
      "*1": 1
drugs:
  DrugX: GENEX
`

func TestLoadTables(t *testing.T) {
	tables, err := pgx.LoadTables(strings.NewReader(customTables))
	require.NoError(t, err)

	assert.Equal(t, pgx.RuleSum, tables.Genes["GENEY"].Rule, "defaults applied")
	assert.NotEmpty(t, tables.Genes["GENEY"].Bands)

	enc := newEncoder(t, pgx.WithTables(tables))
	p, err := enc.EncodeProfile([]pgx.Call{{Gene: "GENEX", Allele1: "*1", Allele2: "*2"}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Diplotypes[0].ActivityScore, "min rule")
	assert.Equal(t, pgx.Intermediate, p.Diplotypes[0].Phenotype)

	rec, err := enc.PredictInteractions(p, "DRUGX")
	require.NoError(t, err)
	assert.Equal(t, pgx.UseWithCaution, rec.Recommendation)
}

const minRuleTables = `
genes:
  CYP2C9:
    rule: min
    alleles:
      "*1": 1
      "*2": 0.5
      "*3": 0
    bands:
      - {phenotype: NM, min: 1, inclusive: true}
      - {phenotype: IM, min: 0.5, inclusive: true}
`

func TestMinActivityRule(t *testing.T) {
	tables, err := pgx.LoadTables(strings.NewReader(minRuleTables))
	require.NoError(t, err)
	gene, err := tables.Gene("CYP2C9")
	require.NoError(t, err)
	assert.Equal(t, pgx.RuleMin, gene.Rule)

	minEnc := newEncoder(t, pgx.WithTables(tables))
	sumEnc := newEncoder(t)

	tests := []struct {
		a1, a2   string
		activity float64
		want     pgx.Phenotype
	}{
		{"*1", "*1", 1, pgx.Normal},
		{"*1", "*2", 0.5, pgx.Intermediate},
		{"*1", "*3", 0, pgx.Poor},
		{"*2", "*3", 0, pgx.Poor},
		{"*2", "*2", 0.5, pgx.Intermediate},
	}
	for _, tt := range tests {
		t.Run(tt.a1+tt.a2, func(t *testing.T) {
			a1, err := tables.AlleleActivity("CYP2C9", tt.a1)
			require.NoError(t, err)
			a2, err := tables.AlleleActivity("CYP2C9", tt.a2)
			require.NoError(t, err)
			require.Equal(t, min(a1, a2), tt.activity)

			fwd, err := minEnc.EncodeDiplotype("CYP2C9", tt.a1, tt.a2)
			require.NoError(t, err)
			rev, err := minEnc.EncodeDiplotype("CYP2C9", tt.a2, tt.a1)
			require.NoError(t, err)

			assert.InDelta(t, tt.activity, fwd.ActivityScore, 1e-9)
			assert.Equal(t, tt.want, fwd.Phenotype)
			assert.Equal(t, fwd.ActivityScore, rev.ActivityScore)
			assert.Equal(t, fwd.Phenotype, rev.Phenotype)
			assert.True(t, hypervector.Equal(fwd.Vector, rev.Vector))

			summed, err := sumEnc.EncodeDiplotype("CYP2C9", tt.a1, tt.a2)
			require.NoError(t, err)
			assert.InDelta(t, a1+a2, summed.ActivityScore, 1e-9)
		})
	}
}

func TestLoadTablesRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "genes: [",
		"no genes":     "drugs: {}",
		"no alleles":   "genes: {G: {rule: sum}}",
		"bad rule":     "genes: {G: {rule: max, alleles: {'*1': 1}}}",
		"orphan drug":  "genes: {G: {alleles: {'*1': 1}}}\ndrugs: {d: H}",
		"bad activity": "genes: {G: {alleles: {'*1': -1}}}",
		"bad band":     "genes: {G: {alleles: {'*1': 1}, bands: [{phenotype: XX, min: 1}]}}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pgx.LoadTables(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestTablesSaveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, pgx.DefaultTables().Save(&buf))

	loaded, err := pgx.LoadTables(&buf)
	require.NoError(t, err)
	assert.Equal(t, pgx.DefaultTables().GeneNames(), loaded.GeneNames())
	assert.Equal(t, pgx.DefaultTables().SupportedDrugs(), loaded.SupportedDrugs())

	f, ok := loaded.AlleleFrequency("CYP2D6", "*10", pgx.Single(pgx.EastAsian))
	require.True(t, ok)
	assert.Equal(t, 0.40, f)
	assert.Equal(t, pgx.Ultrarapid, loaded.Genes["CYP2C19"].Phenotype(2.5))
}
