package pgx_test

import (
	"encoding/json"
	"testing"

	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/pgx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlleleAndDiplotypeFrequency(t *testing.T) {
	tables := pgx.DefaultTables()
	eur := pgx.Single(pgx.European)

	f, ok := tables.AlleleFrequency("CYP2D6", "*4", eur)
	require.True(t, ok)
	assert.Equal(t, 0.20, f)

	_, ok = tables.AlleleFrequency("CYP2D6", "*4", pgx.Single(pgx.Oceanian))
	assert.False(t, ok)

	mixed, ok := tables.AlleleFrequency("CYP2D6", "*4", pgx.Mixed(pgx.European, pgx.African))
	require.True(t, ok)
	assert.InDelta(t, 0.13, mixed, 1e-9)

	assert.InDelta(t, 0.04, tables.DiplotypeFrequency("CYP2D6", "*4", "*4", eur), 1e-9)
	assert.InDelta(t, 0.008, tables.DiplotypeFrequency("CYP2D6", "*4", "*10", eur), 1e-9)
	assert.InDelta(t, 0.20, tables.DiplotypeFrequency("CYP2D6", "*1", "*4", eur), 1e-9)
	assert.InDelta(t, 0.01, tables.DiplotypeFrequency("CYP2D6", "*1", "*1", eur), 1e-9)
}

func TestPhenotypePrior(t *testing.T) {
	assert.Equal(t, 0.15, pgx.PhenotypePrior("CYP2C19", pgx.Poor, pgx.Single(pgx.EastAsian)))
	assert.Equal(t, 0.85, pgx.PhenotypePrior("CYP3A5", pgx.Poor, pgx.Single(pgx.European)))
	assert.Equal(t, 0.05, pgx.PhenotypePrior("CYP2C19", pgx.Poor, pgx.Single(pgx.Latino)))
	assert.Equal(t, 0.70, pgx.PhenotypePrior("TPMT", pgx.Normal, pgx.Ancestry{}))
	assert.Equal(t, 0.0, pgx.PhenotypePrior("TPMT", pgx.Indeterminate, pgx.Ancestry{}))
}

func TestAncestryEncodeProfile(t *testing.T) {
	ae := pgx.NewAncestryEncoder(newEncoder(t))

	p, err := ae.EncodeProfile([]pgx.Call{
		{Gene: "CYP2D6", Allele1: "*10", Allele2: "*1"},
		{Gene: "CYP2C19", Allele1: "*2", Allele2: "*3"},
		{Gene: "NUDT15", Allele1: "*1", Allele2: "*3"},
	}, pgx.Single(pgx.EastAsian))
	require.NoError(t, err)

	assert.Equal(t, pgx.Single(pgx.EastAsian), p.Ancestry)
	require.Len(t, p.Diplotypes, 3)
	assert.InDelta(t, 0.40, p.Diplotypes[0].DiplotypeFrequency, 1e-9)
	assert.InDelta(t, 2*0.30*0.08, p.Diplotypes[1].DiplotypeFrequency, 1e-9)
	assert.Equal(t, 0.15, p.Diplotypes[1].PhenotypePrior)

	assert.Contains(t, p.Notes, "CYP2D6*10 is very common in East Asian ancestry (~40%)")
	assert.Contains(t, p.Notes, "CYP2C19*3 is primarily found in East Asian populations")
	assert.Contains(t, p.Notes, "Consider NUDT15 testing before thiopurine therapy")
	assert.IsIncreasing(t, p.Notes)

	single, err := ae.EncodeDiplotype("CYP2D6", "*17", "*29", pgx.Single(pgx.African))
	require.NoError(t, err)
	assert.Len(t, single.Notes, 2)
	assert.InDelta(t, 2*0.20*0.10, single.DiplotypeFrequency, 1e-9)

	_, err = ae.EncodeProfile([]pgx.Call{{Gene: "CYP2D6", Allele1: "*1", Allele2: "*0"}}, pgx.Ancestry{})
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)
}

func TestAncestryConfidence(t *testing.T) {
	ae := pgx.NewAncestryEncoder(newEncoder(t))
	common := pgx.Call{Gene: "CYP2D6", Allele1: "*1", Allele2: "*4"}

	tests := []struct {
		name     string
		call     pgx.Call
		ancestry pgx.Ancestry
		want     float64
	}{
		{"common allele raises", common, pgx.Single(pgx.European), 0.9 * 1.1},
		{"common in smaller cohort", common, pgx.Single(pgx.Latino), 0.7 * 1.1},
		{"neutral frequency", common, pgx.Single(pgx.EastAsian), 0.9},
		{"rare allele lowers", pgx.Call{Gene: "CYP2D6", Allele1: "*1", Allele2: "*17"}, pgx.Single(pgx.European), 0.9 * 0.9},
		{"no data", common, pgx.Single(pgx.Oceanian), 0.5},
		{"unknown", common, pgx.Ancestry{}, 0.4},
		{"mixed", common, pgx.Mixed(pgx.European, pgx.African), 0.6 * 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ae.EncodeProfile([]pgx.Call{tt.call}, tt.ancestry)
			require.NoError(t, err)
			pred, err := ae.Predict(p, "codeine")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, pred.Confidence, 1e-9)
			assert.GreaterOrEqual(t, pred.Confidence, 0.0)
			assert.LessOrEqual(t, pred.Confidence, 1.0)
		})
	}
}

func TestDosingGuidance(t *testing.T) {
	ae := pgx.NewAncestryEncoder(newEncoder(t))

	tests := []struct {
		name     string
		call     pgx.Call
		ancestry pgx.Ancestry
		drug     string
		want     pgx.DoseAdjustment
	}{
		{"poor metabolizer", pgx.Call{Gene: "CYP2D6", Allele1: "*4", Allele2: "*4"}, pgx.Single(pgx.European), "codeine",
			pgx.DoseAdjustment{Kind: pgx.AdjustContraindicated}},
		{"normal metabolizer", pgx.Call{Gene: "CYP2C9", Allele1: "*1", Allele2: "*1"}, pgx.Single(pgx.European), "warfarin",
			pgx.DoseAdjustment{Kind: pgx.AdjustStandard}},
		{"reduced", pgx.Call{Gene: "TPMT", Allele1: "*1", Allele2: "*3A"}, pgx.Single(pgx.European), "azathioprine",
			pgx.DoseAdjustment{Kind: pgx.AdjustReduce, Percent: 25}},
		{"cyp3a5 expresser", pgx.Call{Gene: "CYP3A5", Allele1: "*1", Allele2: "*1"}, pgx.Single(pgx.African), "tacrolimus",
			pgx.DoseAdjustment{Kind: pgx.AdjustIncrease, Percent: 50}},
		{"cyp3a5 expresser elsewhere", pgx.Call{Gene: "CYP3A5", Allele1: "*1", Allele2: "*1"}, pgx.Single(pgx.European), "tacrolimus",
			pgx.DoseAdjustment{Kind: pgx.AdjustCaution}},
		{"ultrarapid", pgx.Call{Gene: "CYP2D6", Allele1: "*1xN", Allele2: "*1"}, pgx.Single(pgx.African), "codeine",
			pgx.DoseAdjustment{Kind: pgx.AdjustIncrease, Percent: 25}},
		{"intermediate caution", pgx.Call{Gene: "CYP2D6", Allele1: "*4", Allele2: "*10"}, pgx.Single(pgx.EastAsian), "tramadol",
			pgx.DoseAdjustment{Kind: pgx.AdjustCaution}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ae.EncodeProfile([]pgx.Call{tt.call}, tt.ancestry)
			require.NoError(t, err)
			g, err := ae.DosingGuidance(p, tt.drug)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Adjustment)
			assert.Equal(t, tt.call.Gene, g.Gene)
			assert.NotEmpty(t, g.Reasoning)
		})
	}
}

func TestDosingGuidanceConsiderations(t *testing.T) {
	ae := pgx.NewAncestryEncoder(newEncoder(t))
	p, err := ae.EncodeProfile([]pgx.Call{{Gene: "CYP2C19", Allele1: "*2", Allele2: "*2"}}, pgx.Single(pgx.EastAsian))
	require.NoError(t, err)

	g, err := ae.DosingGuidance(p, "clopidogrel")
	require.NoError(t, err)
	assert.Len(t, g.Considerations, 2)
	assert.Equal(t, "contraindicated", g.Adjustment.String())

	_, err = ae.DosingGuidance(p, "codeine")
	require.ErrorIs(t, err, errdefs.ErrUnknownSymbol)
}

func TestAncestryText(t *testing.T) {
	for _, a := range []pgx.Ancestry{
		pgx.Single(pgx.CentralSouthAsian),
		pgx.Mixed(pgx.European, pgx.EastAsian),
		{},
	} {
		data, err := json.Marshal(a)
		require.NoError(t, err)
		var got pgx.Ancestry
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, a, got)
	}

	assert.Equal(t, "Mixed (European, East Asian)", pgx.Mixed(pgx.European, pgx.EastAsian).String())
	assert.Equal(t, pgx.Single(pgx.Latino), pgx.Mixed(pgx.Latino))

	var a pgx.Ancestry
	require.ErrorIs(t, a.UnmarshalText([]byte("martian")), errdefs.ErrUnknownSymbol)
}
