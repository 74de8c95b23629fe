package pgx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/luminous-dynamics/hdc/codec"
	"github.com/luminous-dynamics/hdc/errdefs"
)

// Phenotype is a metabolizer status derived from an activity score.
type Phenotype int

const (
	Indeterminate Phenotype = iota
	Ultrarapid
	RapidToNormal
	Normal
	Intermediate
	Poor
)

var phenotypeCodes = map[Phenotype]string{
	Indeterminate: "IND",
	Ultrarapid:    "UM",
	RapidToNormal: "RM",
	Normal:        "NM",
	Intermediate:  "IM",
	Poor:          "PM",
}

// String returns the clinical display name.
func (p Phenotype) String() string {
	switch p {
	case Ultrarapid:
		return "Ultrarapid Metabolizer"
	case RapidToNormal:
		return "Rapid to Normal Metabolizer"
	case Normal:
		return "Normal Metabolizer"
	case Intermediate:
		return "Intermediate Metabolizer"
	case Poor:
		return "Poor Metabolizer"
	default:
		return "Indeterminate"
	}
}

// Code returns the short form used in table files ("PM", "NM", ...).
func (p Phenotype) Code() string {
	if c, ok := phenotypeCodes[p]; ok {
		return c
	}
	return "IND"
}

func (p Phenotype) MarshalText() ([]byte, error) {
	return []byte(p.Code()), nil
}

func (p *Phenotype) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for ph, code := range phenotypeCodes {
		if code == s {
			*p = ph
			return nil
		}
	}
	return &errdefs.FormatError{Source: "pgx tables", Reason: fmt.Sprintf("unknown phenotype %q", text)}
}

// Recommendation is a dosing action for a drug given a phenotype.
type Recommendation int

const (
	InsufficientEvidence Recommendation = iota
	StandardDose
	ConsiderAlternative
	ReducedDose
	Avoid
	UseWithCaution
)

var recommendationCodes = map[Recommendation]string{
	InsufficientEvidence: "insufficient",
	StandardDose:         "standard",
	ConsiderAlternative:  "alternative",
	ReducedDose:          "reduced",
	Avoid:                "avoid",
	UseWithCaution:       "caution",
}

func (r Recommendation) String() string {
	switch r {
	case StandardDose:
		return "Standard dose recommended"
	case ConsiderAlternative:
		return "Consider alternative or increased dose"
	case ReducedDose:
		return "Reduced dose recommended"
	case Avoid:
		return "Avoid - use alternative drug"
	case UseWithCaution:
		return "Use with caution"
	default:
		return "Insufficient evidence"
	}
}

func (r Recommendation) MarshalText() ([]byte, error) {
	return []byte(recommendationCodes[r]), nil
}

func (r *Recommendation) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for rec, code := range recommendationCodes {
		if code == s {
			*r = rec
			return nil
		}
	}
	return &errdefs.FormatError{Source: "pgx tables", Reason: fmt.Sprintf("unknown recommendation %q", text)}
}

// ActivityRule combines the two allele activity values of a diplotype.
type ActivityRule string

const (
	RuleSum ActivityRule = "sum"
	RuleMin ActivityRule = "min"
)

// Band maps activity scores to a phenotype. A score matches when it is
// above Min (or equal to it when Inclusive). Bands are tried in order and
// a score matching none is Poor.
type Band struct {
	Phenotype Phenotype `yaml:"phenotype" json:"phenotype"`
	Min       float64   `yaml:"min" json:"min"`
	Inclusive bool      `yaml:"inclusive" json:"inclusive"`
}

func (b Band) matches(score float64) bool {
	if b.Inclusive {
		return score >= b.Min
	}
	return score > b.Min
}

// Gene holds the clinical configuration for one pharmacogene.
type Gene struct {
	Rule            ActivityRule                 `yaml:"rule,omitempty" json:"rule,omitempty"`
	Alleles         map[string]float64           `yaml:"alleles" json:"alleles"`
	Bands           []Band                       `yaml:"bands,omitempty" json:"bands,omitempty"`
	Recommendations map[Phenotype]Recommendation `yaml:"recommendations,omitempty" json:"recommendations,omitempty"`
}

// Activity combines two allele values under the gene's rule.
func (g *Gene) Activity(a1, a2 float64) float64 {
	if g.Rule == RuleMin {
		return min(a1, a2)
	}
	return a1 + a2
}

// Phenotype classifies an activity score.
func (g *Gene) Phenotype(score float64) Phenotype {
	for _, b := range g.Bands {
		if b.matches(score) {
			return b.Phenotype
		}
	}
	return Poor
}

// Recommend returns the action for phenotype p. Phenotypes without a
// rule have insufficient evidence.
func (g *Gene) Recommend(p Phenotype) Recommendation {
	if r, ok := g.Recommendations[p]; ok {
		return r
	}
	return InsufficientEvidence
}

// Tables is the clinical configuration shared by the PGx encoders: allele
// activity values, phenotype bands, drug to gene associations and
// population allele frequencies. Tables are read-only once handed to an
// encoder.
type Tables struct {
	Genes map[string]*Gene `yaml:"genes" json:"genes"`

	// Drugs maps a lowercase drug name to the gene that governs it.
	Drugs map[string]string `yaml:"drugs" json:"drugs"`

	// Frequencies holds allele frequencies by gene, allele and population.
	Frequencies map[string]map[string]map[Group]float64 `yaml:"frequencies,omitempty" json:"frequencies,omitempty"`
}

// ── Defaults ────────────────────────────────────────────────────────────────

func genericBands() []Band {
	return []Band{
		{Phenotype: Normal, Min: 1.5, Inclusive: true},
		{Phenotype: Intermediate, Min: 0.5, Inclusive: true},
	}
}

func toxicityRules() map[Phenotype]Recommendation {
	return map[Phenotype]Recommendation{
		Normal:       StandardDose,
		Intermediate: ReducedDose,
		Poor:         Avoid,
	}
}

func alleles(value float64, names ...string) map[string]float64 {
	m := make(map[string]float64, len(names))
	for _, n := range names {
		m[n] = value
	}
	return m
}

func merge(ms ...map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range ms {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// DefaultTables returns the built-in CPIC-derived tables. Each call
// returns a fresh copy.
func DefaultTables() *Tables {
	t := &Tables{
		Genes: map[string]*Gene{
			"CYP2D6": {
				Alleles: merge(
					alleles(1.0, "*1", "*2", "*27", "*33", "*35", "*39", "*45", "*46"),
					alleles(0.5, "*9", "*17", "*29", "*41", "*43", "*49"),
					alleles(0.25, "*10", "*14", "*21", "*44"),
					alleles(0.0, "*3", "*4", "*5", "*6", "*7", "*8", "*11", "*12", "*13", "*15", "*16",
						"*18", "*19", "*20", "*31", "*36", "*38", "*40", "*42", "*47", "*51",
						"*56", "*57", "*62", "*68", "*69", "*92", "*100"),
					alleles(2.0, "*1xN", "*2xN"),
				),
				Bands: []Band{
					{Phenotype: Ultrarapid, Min: 2},
					{Phenotype: Normal, Min: 1.25, Inclusive: true},
					{Phenotype: Intermediate, Min: 0.25, Inclusive: true},
				},
				Recommendations: map[Phenotype]Recommendation{
					Ultrarapid:    ConsiderAlternative,
					RapidToNormal: StandardDose,
					Normal:        StandardDose,
					Intermediate:  UseWithCaution,
					Poor:          Avoid,
				},
			},
			"CYP2C19": {
				Alleles: merge(
					alleles(1.0, "*1", "*27", "*28"),
					alleles(1.5, "*17"),
					alleles(0.0, "*2", "*3", "*4", "*5", "*6", "*7", "*8", "*9", "*10", "*22", "*24", "*26"),
				),
				Bands: []Band{
					{Phenotype: Ultrarapid, Min: 2},
					{Phenotype: RapidToNormal, Min: 1.5, Inclusive: true},
					{Phenotype: Normal, Min: 1.0, Inclusive: true},
					{Phenotype: Intermediate, Min: 0},
				},
				Recommendations: map[Phenotype]Recommendation{
					Ultrarapid:    ConsiderAlternative,
					RapidToNormal: ConsiderAlternative,
					Normal:        StandardDose,
					Intermediate:  UseWithCaution,
					Poor:          Avoid,
				},
			},
			"CYP2C9": {
				Alleles: merge(
					alleles(1.0, "*1"),
					alleles(0.5, "*2", "*8", "*11"),
					alleles(0.0, "*3", "*5", "*6", "*13"),
				),
				Recommendations: map[Phenotype]Recommendation{
					Normal:        StandardDose,
					RapidToNormal: StandardDose,
					Intermediate:  ReducedDose,
					Poor:          Avoid,
				},
			},
			"CYP3A5": {
				Alleles: merge(alleles(1.0, "*1"), alleles(0.0, "*3", "*6", "*7")),
				Recommendations: map[Phenotype]Recommendation{
					Normal:       ConsiderAlternative,
					Intermediate: UseWithCaution,
					Poor:         StandardDose,
				},
			},
			"TPMT": {
				Alleles: merge(
					alleles(1.0, "*1"),
					alleles(0.0, "*2", "*3A", "*3B", "*3C", "*4", "*5", "*6", "*7", "*8", "*9", "*10",
						"*11", "*12", "*13", "*14", "*15", "*16", "*17", "*18", "*19", "*20",
						"*21", "*22", "*23", "*24", "*25", "*26", "*27", "*28"),
				),
			},
			"NUDT15": {
				Alleles: merge(alleles(1.0, "*1"), alleles(0.0, "*2", "*3", "*4", "*5", "*6")),
			},
			"DPYD": {
				Alleles: merge(
					alleles(1.0, "*1"),
					alleles(0.0, "*2A", "*13"),
					alleles(0.5, "c.2846A>T", "c.1129-5923C>G", "c.1236G>A"),
				),
			},
			"SLCO1B1": {
				Alleles: merge(
					alleles(1.0, "*1A", "*1B"),
					alleles(0.5, "*5", "*15", "*17", "*21", "*31"),
					alleles(0.0, "*45"),
				),
			},
			"UGT1A1": {
				Alleles: merge(alleles(1.0, "*1"), alleles(0.5, "*6", "*28"), alleles(0.0, "*37")),
			},
			"VKORC1": {
				Alleles: map[string]float64{"A": 0.5, "B": 1.0, "-1639G>A": 0.5},
				Recommendations: map[Phenotype]Recommendation{
					Normal:       StandardDose,
					Intermediate: ReducedDose,
					Poor:         ReducedDose,
				},
			},
			"CYP2B6": {
				Alleles: merge(alleles(1.0, "*1"), alleles(0.5, "*6"), alleles(0.0, "*18")),
				Recommendations: map[Phenotype]Recommendation{
					Ultrarapid:   ConsiderAlternative,
					Normal:       StandardDose,
					Intermediate: ReducedDose,
					Poor:         ReducedDose,
				},
			},
		},
		Drugs:       defaultDrugs(),
		Frequencies: defaultFrequencies(),
	}
	t.ApplyDefaults()
	return t
}

func defaultDrugs() map[string]string {
	byGene := map[string][]string{
		"CYP2D6": {"codeine", "tramadol", "oxycodone", "hydrocodone", "tamoxifen", "ondansetron",
			"tropisetron", "paroxetine", "fluvoxamine", "atomoxetine", "nortriptyline",
			"amitriptyline", "clomipramine", "desipramine", "doxepin", "imipramine", "trimipramine"},
		"CYP2C19": {"clopidogrel", "omeprazole", "lansoprazole", "pantoprazole", "esomeprazole",
			"citalopram", "escitalopram", "sertraline", "voriconazole"},
		"CYP2C9":  {"warfarin", "phenytoin", "celecoxib", "flurbiprofen", "siponimod"},
		"CYP3A5":  {"tacrolimus"},
		"TPMT":    {"azathioprine", "mercaptopurine", "thioguanine"},
		"DPYD":    {"fluorouracil", "5-fluorouracil", "5-fu", "capecitabine", "tegafur"},
		"SLCO1B1": {"simvastatin", "atorvastatin", "rosuvastatin", "pravastatin"},
		"UGT1A1":  {"irinotecan", "atazanavir"},
		"CYP2B6":  {"efavirenz"},
	}
	out := make(map[string]string)
	for gene, drugs := range byGene {
		for _, d := range drugs {
			out[d] = gene
		}
	}
	return out
}

// ApplyDefaults fills omitted rules, bands and recommendation maps. Genes
// without explicit bands use the generic cutoffs (>= 1.5 normal, >= 0.5
// intermediate) and genes without recommendations use the toxicity rule
// set (normal standard, intermediate reduced, poor avoid).
func (t *Tables) ApplyDefaults() {
	if t.Genes == nil {
		t.Genes = make(map[string]*Gene)
	}
	if t.Drugs == nil {
		t.Drugs = make(map[string]string)
	}
	for _, g := range t.Genes {
		if g == nil {
			continue
		}
		if g.Rule == "" {
			g.Rule = RuleSum
		}
		if len(g.Bands) == 0 {
			g.Bands = genericBands()
		}
		if len(g.Recommendations) == 0 {
			g.Recommendations = toxicityRules()
		}
	}
	normalized := make(map[string]string, len(t.Drugs))
	for d, g := range t.Drugs {
		normalized[normalizeDrug(d)] = g
	}
	t.Drugs = normalized
}

// Validate checks that every gene has alleles and a known rule, and that
// every drug points at a configured gene.
func (t *Tables) Validate() error {
	if len(t.Genes) == 0 {
		return errdefs.Configuration("genes", "at least one gene is required")
	}
	for name, g := range t.Genes {
		if g == nil || len(g.Alleles) == 0 {
			return errdefs.Configuration("genes."+name, "no alleles configured")
		}
		if g.Rule != RuleSum && g.Rule != RuleMin {
			return errdefs.Configuration("genes."+name+".rule", fmt.Sprintf("unknown activity rule %q", g.Rule))
		}
		for allele, v := range g.Alleles {
			if v < 0 {
				return errdefs.Configuration("genes."+name+".alleles."+allele, "activity must be >= 0")
			}
		}
	}
	for drug, gene := range t.Drugs {
		if _, ok := t.Genes[gene]; !ok {
			return errdefs.Configuration("drugs."+drug, fmt.Sprintf("gene %q is not configured", gene))
		}
	}
	return nil
}

// Gene returns the configuration for name.
func (t *Tables) Gene(name string) (*Gene, error) {
	g, ok := t.Genes[name]
	if !ok || g == nil {
		return nil, errdefs.UnknownSymbol("gene", name)
	}
	return g, nil
}

// AlleleActivity returns the activity value of allele within gene.
func (t *Tables) AlleleActivity(gene, allele string) (float64, error) {
	g, err := t.Gene(gene)
	if err != nil {
		return 0, err
	}
	v, ok := g.Alleles[allele]
	if !ok {
		return 0, &errdefs.UnknownSymbolError{Kind: "allele", Symbol: allele, Scope: gene}
	}
	return v, nil
}

// DrugGene returns the gene governing drug. Drug names are case-insensitive.
func (t *Tables) DrugGene(drug string) (string, error) {
	g, ok := t.Drugs[normalizeDrug(drug)]
	if !ok {
		return "", errdefs.UnknownSymbol("drug", drug)
	}
	return g, nil
}

// SupportedDrugs lists every drug with a gene association, sorted.
func (t *Tables) SupportedDrugs() []string {
	out := make([]string, 0, len(t.Drugs))
	for d := range t.Drugs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// GeneNames lists the configured genes, sorted.
func (t *Tables) GeneNames() []string {
	out := make([]string, 0, len(t.Genes))
	for g := range t.Genes {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func normalizeDrug(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

// ── Loading ─────────────────────────────────────────────────────────────────

// LoadTables decodes YAML tables, applies defaults and validates them.
func LoadTables(r io.Reader) (*Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pgx tables: %w", err)
	}
	var t Tables
	if err := (codec.YAML{}).Unmarshal(data, &t); err != nil {
		return nil, &errdefs.FormatError{Source: "pgx tables", Reason: "invalid yaml", Err: err}
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTablesFile reads tables from path.
func LoadTablesFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open pgx tables: %w", err)
	}
	return LoadTables(bytes.NewReader(data))
}

// Save writes t as YAML.
func (t *Tables) Save(w io.Writer) error {
	data, err := (codec.YAML{}).Marshal(t)
	if err != nil {
		return fmt.Errorf("encode pgx tables: %w", err)
	}
	_, err = w.Write(data)
	return err
}
