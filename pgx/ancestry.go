package pgx

import (
	"fmt"
	"slices"
	"strings"

	"github.com/luminous-dynamics/hdc/errdefs"
)

// Group is a biogeographic population group (PharmGKB classification).
type Group int

const (
	Unknown Group = iota
	African
	American
	CentralSouthAsian
	EastAsian
	European
	Latino
	NearEastern
	Oceanian
)

var groupCodes = map[Group]string{
	Unknown:           "unknown",
	African:           "african",
	American:          "american",
	CentralSouthAsian: "central_south_asian",
	EastAsian:         "east_asian",
	European:          "european",
	Latino:            "latino",
	NearEastern:       "near_eastern",
	Oceanian:          "oceanian",
}

func (g Group) String() string {
	switch g {
	case African:
		return "African"
	case American:
		return "American"
	case CentralSouthAsian:
		return "Central/South Asian"
	case EastAsian:
		return "East Asian"
	case European:
		return "European"
	case Latino:
		return "Latino"
	case NearEastern:
		return "Near Eastern"
	case Oceanian:
		return "Oceanian"
	default:
		return "Unknown"
	}
}

func (g Group) MarshalText() ([]byte, error) {
	c, ok := groupCodes[g]
	if !ok {
		c = "unknown"
	}
	return []byte(c), nil
}

func (g *Group) UnmarshalText(text []byte) error {
	parsed, err := ParseGroup(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGroup parses a group code such as "east_asian".
func ParseGroup(s string) (Group, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, code := range groupCodes {
		if code == s {
			return g, nil
		}
	}
	return Unknown, errdefs.UnknownSymbol("ancestry", s)
}

// Ancestry is a single population group or a mix of several. The zero
// value is Unknown.
type Ancestry struct {
	Group      Group
	Components []Group
}

// Single returns the ancestry of one group.
func Single(g Group) Ancestry { return Ancestry{Group: g} }

// Mixed returns a multi-group ancestry. A single component collapses to
// that group.
func Mixed(groups ...Group) Ancestry {
	if len(groups) == 1 {
		return Single(groups[0])
	}
	return Ancestry{Components: slices.Clone(groups)}
}

// IsMixed reports whether a has several components.
func (a Ancestry) IsMixed() bool { return len(a.Components) > 0 }

func (a Ancestry) String() string {
	if !a.IsMixed() {
		return a.Group.String()
	}
	names := make([]string, len(a.Components))
	for i, g := range a.Components {
		names[i] = g.String()
	}
	return "Mixed (" + strings.Join(names, ", ") + ")"
}

// MarshalText encodes a group code, or "mixed:a+b" for mixed ancestry.
func (a Ancestry) MarshalText() ([]byte, error) {
	if !a.IsMixed() {
		return a.Group.MarshalText()
	}
	codes := make([]string, len(a.Components))
	for i, g := range a.Components {
		codes[i] = groupCodes[g]
	}
	return []byte("mixed:" + strings.Join(codes, "+")), nil
}

func (a *Ancestry) UnmarshalText(text []byte) error {
	s := string(text)
	if rest, ok := strings.CutPrefix(s, "mixed:"); ok {
		var groups []Group
		for _, part := range strings.Split(rest, "+") {
			g, err := ParseGroup(part)
			if err != nil {
				return err
			}
			groups = append(groups, g)
		}
		*a = Mixed(groups...)
		return nil
	}
	g, err := ParseGroup(s)
	if err != nil {
		return err
	}
	*a = Single(g)
	return nil
}

// groups returns the groups frequency lookups average over.
func (a Ancestry) groups() []Group {
	if a.IsMixed() {
		return a.Components
	}
	return []Group{a.Group}
}

// baseConfidence reflects how well a population is represented in the
// frequency literature.
func (a Ancestry) baseConfidence() float64 {
	if a.IsMixed() {
		return 0.6
	}
	switch a.Group {
	case European, EastAsian, African:
		return 0.9
	case Latino, CentralSouthAsian:
		return 0.7
	case NearEastern, American, Oceanian:
		return 0.5
	default:
		return 0.4
	}
}

// ── Frequencies ─────────────────────────────────────────────────────────────

func defaultFrequencies() map[string]map[string]map[Group]float64 {
	return map[string]map[string]map[Group]float64{
		"CYP2D6": {
			"*4":  {European: 0.20, African: 0.06, EastAsian: 0.01, Latino: 0.10, CentralSouthAsian: 0.05},
			"*10": {EastAsian: 0.40, European: 0.02, African: 0.05, Latino: 0.04},
			"*17": {African: 0.20, European: 0.001, EastAsian: 0.001, Latino: 0.03},
			"*29": {African: 0.10, European: 0.001, EastAsian: 0.001},
		},
		"CYP2C19": {
			"*2":  {EastAsian: 0.30, European: 0.15, African: 0.15, Latino: 0.12},
			"*3":  {EastAsian: 0.08, European: 0.001, African: 0.001, Latino: 0.001},
			"*17": {European: 0.21, African: 0.16, EastAsian: 0.01, Latino: 0.15},
		},
		"CYP2C9": {
			"*2": {European: 0.13, African: 0.02, EastAsian: 0.001, Latino: 0.06},
			"*3": {European: 0.07, African: 0.01, EastAsian: 0.04, Latino: 0.03},
		},
		"CYP3A5": {
			"*3": {European: 0.85, African: 0.30, EastAsian: 0.70, Latino: 0.65},
		},
		"DPYD": {
			"*2A": {European: 0.01, African: 0.001, EastAsian: 0.001},
		},
		"SLCO1B1": {
			"*5": {European: 0.15, EastAsian: 0.10, African: 0.02, Latino: 0.08},
		},
		"TPMT": {
			"*3A": {European: 0.05, African: 0.01, EastAsian: 0.001, Latino: 0.03},
			"*3C": {EastAsian: 0.02, African: 0.05, European: 0.005},
		},
		"UGT1A1": {
			"*28": {European: 0.32, African: 0.42, EastAsian: 0.15, Latino: 0.28},
		},
		"NUDT15": {
			"*3": {EastAsian: 0.10, Latino: 0.03, European: 0.002, African: 0.001},
		},
	}
}

// AlleleFrequency returns the population frequency of allele. For mixed
// ancestry it averages the components that have data.
func (t *Tables) AlleleFrequency(gene, allele string, a Ancestry) (float64, bool) {
	byGroup, ok := t.Frequencies[gene][allele]
	if !ok {
		return 0, false
	}
	var sum float64
	var n int
	for _, g := range a.groups() {
		if f, ok := byGroup[g]; ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// fallbackDiplotypeFrequency is used when neither allele has population data.
const fallbackDiplotypeFrequency = 0.01

// DiplotypeFrequency estimates the diplotype's population frequency under
// Hardy-Weinberg equilibrium: p² for homozygotes, 2pq for heterozygotes.
// With only one allele known, that allele's frequency is returned.
func (t *Tables) DiplotypeFrequency(gene, allele1, allele2 string, a Ancestry) float64 {
	f1, ok1 := t.AlleleFrequency(gene, allele1, a)
	f2, ok2 := t.AlleleFrequency(gene, allele2, a)
	switch {
	case ok1 && ok2 && allele1 == allele2:
		return f1 * f1
	case ok1 && ok2:
		return 2 * f1 * f2
	case ok1:
		return f1
	case ok2:
		return f2
	default:
		return fallbackDiplotypeFrequency
	}
}

type priorKey struct {
	gene      string
	phenotype Phenotype
	group     Group
}

var phenotypePriors = map[priorKey]float64{
	{"CYP2D6", Poor, European}:          0.07,
	{"CYP2D6", Poor, African}:           0.02,
	{"CYP2D6", Poor, EastAsian}:         0.01,
	{"CYP2D6", Intermediate, EastAsian}: 0.35,
	{"CYP2D6", Ultrarapid, African}:     0.10,
	{"CYP2C19", Poor, EastAsian}:        0.15,
	{"CYP2C19", Poor, European}:         0.02,
	{"CYP2C19", Ultrarapid, European}:   0.05,
	{"CYP3A5", Poor, European}:          0.85,
	{"CYP3A5", Poor, African}:           0.10,
	{"NUDT15", Poor, EastAsian}:         0.01,
	{"NUDT15", Intermediate, EastAsian}: 0.18,
}

// PhenotypePrior returns the prior probability of phenotype p for gene in
// population a.
func PhenotypePrior(gene string, p Phenotype, a Ancestry) float64 {
	if !a.IsMixed() {
		if v, ok := phenotypePriors[priorKey{gene, p, a.Group}]; ok {
			return v
		}
	}
	switch p {
	case Normal:
		return 0.70
	case Intermediate:
		return 0.20
	case Poor:
		return 0.05
	case Ultrarapid:
		return 0.03
	case RapidToNormal:
		return 0.02
	default:
		return 0
	}
}

// ── Encoder ─────────────────────────────────────────────────────────────────

// AncestryEncoder adds population context to star-allele encodings.
type AncestryEncoder struct {
	enc *Encoder
}

// NewAncestryEncoder wraps enc.
func NewAncestryEncoder(enc *Encoder) *AncestryEncoder {
	return &AncestryEncoder{enc: enc}
}

// AncestryDiplotype is a diplotype with population context.
type AncestryDiplotype struct {
	Diplotype
	Ancestry           Ancestry `json:"ancestry"`
	DiplotypeFrequency float64  `json:"diplotype_frequency"`
	PhenotypePrior     float64  `json:"phenotype_prior"`
	Notes              []string `json:"notes,omitempty"`
}

// AncestryProfile is a profile with population context. Profile.Ancestry
// is set.
type AncestryProfile struct {
	Profile
	Diplotypes []AncestryDiplotype `json:"ancestry_diplotypes"`
	Notes      []string            `json:"notes,omitempty"`
}

// EncodeDiplotype encodes one call and attaches frequency, prior and notes.
func (ae *AncestryEncoder) EncodeDiplotype(gene, allele1, allele2 string, a Ancestry) (AncestryDiplotype, error) {
	d, err := ae.enc.EncodeDiplotype(gene, allele1, allele2)
	if err != nil {
		return AncestryDiplotype{}, err
	}
	return AncestryDiplotype{
		Diplotype:          d,
		Ancestry:           a,
		DiplotypeFrequency: ae.enc.tables.DiplotypeFrequency(gene, d.Allele1, d.Allele2, a),
		PhenotypePrior:     PhenotypePrior(gene, d.Phenotype, a),
		Notes:              ancestryNotes(gene, d.Allele1, d.Allele2, a),
	}, nil
}

// EncodeProfile encodes calls with ancestry context. Notes are merged and
// de-duplicated.
func (ae *AncestryEncoder) EncodeProfile(calls []Call, a Ancestry) (AncestryProfile, error) {
	base, err := ae.enc.EncodeProfile(calls)
	if err != nil {
		return AncestryProfile{}, err
	}
	base.Ancestry = a

	out := AncestryProfile{Profile: base}
	for _, d := range base.Diplotypes {
		ad := AncestryDiplotype{
			Diplotype:          d,
			Ancestry:           a,
			DiplotypeFrequency: ae.enc.tables.DiplotypeFrequency(d.Gene, d.Allele1, d.Allele2, a),
			PhenotypePrior:     PhenotypePrior(d.Gene, d.Phenotype, a),
			Notes:              ancestryNotes(d.Gene, d.Allele1, d.Allele2, a),
		}
		out.Diplotypes = append(out.Diplotypes, ad)
		out.Notes = append(out.Notes, ad.Notes...)
	}
	out.Notes = sortedUnique(out.Notes)
	return out, nil
}

func hasAllele(a1, a2, allele string) bool {
	return a1 == allele || a2 == allele
}

func ancestryNotes(gene, a1, a2 string, a Ancestry) []string {
	if a.IsMixed() {
		return nil
	}
	var notes []string
	switch {
	case gene == "CYP2D6" && a.Group == African:
		if hasAllele(a1, a2, "*17") {
			notes = append(notes, "CYP2D6*17 is common in African ancestry - reduced function allele")
		}
		if hasAllele(a1, a2, "*29") {
			notes = append(notes, "CYP2D6*29 is primarily found in African populations")
		}
	case gene == "CYP2D6" && a.Group == EastAsian:
		if hasAllele(a1, a2, "*10") {
			notes = append(notes,
				"CYP2D6*10 is very common in East Asian ancestry (~40%)",
				"Consider starting at lower doses for CYP2D6 substrates")
		}
	case gene == "CYP2C19" && a.Group == EastAsian:
		if hasAllele(a1, a2, "*3") {
			notes = append(notes, "CYP2C19*3 is primarily found in East Asian populations")
		}
		notes = append(notes, "Higher prevalence of CYP2C19 poor metabolizers in East Asian ancestry")
	case gene == "CYP3A5" && a.Group == African:
		notes = append(notes,
			"CYP3A5 expression is more common in African ancestry",
			"May require higher tacrolimus doses compared to other populations")
	case gene == "NUDT15" && a.Group == EastAsian:
		notes = append(notes,
			"NUDT15 variants are more common in East Asian ancestry",
			"Consider NUDT15 testing before thiopurine therapy")
	case gene == "UGT1A1" && a.Group == African:
		notes = append(notes,
			"UGT1A1*28 is common in African ancestry (~42%)",
			"Higher risk of irinotecan toxicity")
	}
	return notes
}

func drugConsiderations(drug, gene string, a Ancestry) []string {
	if a.IsMixed() {
		return nil
	}
	switch {
	case drug == "clopidogrel" && gene == "CYP2C19" && a.Group == EastAsian:
		return []string{
			"Higher prevalence of CYP2C19 poor metabolizers in East Asian populations",
			"Consider alternative antiplatelet therapy or genetic testing",
		}
	case (drug == "codeine" || drug == "tramadol") && gene == "CYP2D6" && a.Group == EastAsian:
		return []string{"CYP2D6*10 is common - may have reduced conversion to active metabolite"}
	case (drug == "codeine" || drug == "tramadol") && gene == "CYP2D6" && a.Group == African:
		return []string{"Gene duplications more common - risk of ultrarapid metabolism"}
	case drug == "tacrolimus" && gene == "CYP3A5" && a.Group == African:
		return []string{
			"CYP3A5 expressers more common in African ancestry",
			"May require higher tacrolimus doses for target trough levels",
		}
	case (drug == "azathioprine" || drug == "mercaptopurine") && a.Group == EastAsian:
		return []string{
			"NUDT15 variants common in East Asian ancestry",
			"Consider reduced starting dose or NUDT15 testing",
		}
	case drug == "warfarin" && gene == "CYP2C9" && a.Group == European:
		return []string{"CYP2C9*2 and *3 common in Europeans - may require dose reduction"}
	case drug == "simvastatin" && gene == "SLCO1B1" && a.Group == European:
		return []string{"SLCO1B1*5 common in Europeans - increased myopathy risk"}
	}
	return nil
}

// Frequency thresholds that move prediction confidence.
const (
	rareAlleleFrequency   = 0.01
	commonAlleleFrequency = 0.1
	rareFactor            = 0.9
	commonFactor          = 1.1
)

// confidence scales the population's base confidence by allele-frequency
// priors: each rare allele lowers it and each common one raises it. The
// result is clamped to [0, 1].
func (ae *AncestryEncoder) confidence(d Diplotype, a Ancestry) float64 {
	c := a.baseConfidence()
	for _, allele := range []string{d.Allele1, d.Allele2} {
		f, ok := ae.enc.tables.AlleleFrequency(d.Gene, allele, a)
		switch {
		case !ok:
		case f < rareAlleleFrequency:
			c *= rareFactor
		case f >= commonAlleleFrequency:
			c *= commonFactor
		}
	}
	return max(0, min(1, c))
}

// AncestryPrediction is a drug recommendation with population context.
type AncestryPrediction struct {
	DrugRecommendation
	Ancestry       Ancestry `json:"ancestry"`
	Confidence     float64  `json:"confidence"`
	Considerations []string `json:"considerations,omitempty"`
}

// Predict applies the drug rules and attaches ancestry confidence and
// considerations.
func (ae *AncestryEncoder) Predict(p AncestryProfile, drug string) (AncestryPrediction, error) {
	rec, err := ae.enc.PredictInteractions(p.Profile, drug)
	if err != nil {
		return AncestryPrediction{}, err
	}
	d, _ := p.Profile.Diplotype(rec.Gene)
	return AncestryPrediction{
		DrugRecommendation: rec,
		Ancestry:           p.Ancestry,
		Confidence:         ae.confidence(d, p.Ancestry),
		Considerations:     drugConsiderations(rec.Drug, rec.Gene, p.Ancestry),
	}, nil
}

// AdjustmentKind classifies a dose adjustment.
type AdjustmentKind int

const (
	AdjustStandard AdjustmentKind = iota
	AdjustReduce
	AdjustIncrease
	AdjustContraindicated
	AdjustCaution
)

// DoseAdjustment is a dosing action. Percent is set for Reduce and Increase.
type DoseAdjustment struct {
	Kind    AdjustmentKind `json:"kind"`
	Percent int            `json:"percent,omitempty"`
}

func (d DoseAdjustment) String() string {
	switch d.Kind {
	case AdjustStandard:
		return "standard dose"
	case AdjustReduce:
		return fmt.Sprintf("reduce dose by %d%%", d.Percent)
	case AdjustIncrease:
		return fmt.Sprintf("increase dose by %d%%", d.Percent)
	case AdjustContraindicated:
		return "contraindicated"
	default:
		return "caution needed"
	}
}

// DosingGuidance is the final, ancestry-adjusted dosing advice.
type DosingGuidance struct {
	Drug           string         `json:"drug"`
	Gene           string         `json:"gene"`
	Adjustment     DoseAdjustment `json:"adjustment"`
	Reasoning      string         `json:"reasoning"`
	Confidence     float64        `json:"confidence"`
	Considerations []string       `json:"considerations,omitempty"`
}

// DosingGuidance derives a dose adjustment from the drug recommendation
// and the patient's ancestry.
func (ae *AncestryEncoder) DosingGuidance(p AncestryProfile, drug string) (DosingGuidance, error) {
	pred, err := ae.Predict(p, drug)
	if err != nil {
		return DosingGuidance{}, err
	}
	adj, why := doseRule(pred)
	return DosingGuidance{
		Drug:           pred.Drug,
		Gene:           pred.Gene,
		Adjustment:     adj,
		Reasoning:      why,
		Confidence:     pred.Confidence,
		Considerations: pred.Considerations,
	}, nil
}

func doseRule(p AncestryPrediction) (DoseAdjustment, string) {
	group := p.Ancestry.Group
	if p.Ancestry.IsMixed() {
		group = Unknown
	}
	switch p.Recommendation {
	case Avoid:
		return DoseAdjustment{Kind: AdjustContraindicated}, "Alternative therapy recommended"
	case StandardDose:
		return DoseAdjustment{Kind: AdjustStandard}, "Standard dosing appropriate"
	case ReducedDose:
		if group == EastAsian && p.Gene == "CYP2D6" {
			return DoseAdjustment{Kind: AdjustReduce, Percent: 50},
				"Reduce dose by 50% (adjusted for East Asian CYP2D6*10 prevalence)"
		}
		return DoseAdjustment{Kind: AdjustReduce, Percent: 25}, "Reduce dose by 25%"
	case ConsiderAlternative:
		if group == African && p.Gene == "CYP3A5" {
			return DoseAdjustment{Kind: AdjustIncrease, Percent: 50},
				"Increase dose by 50% (CYP3A5 expresser, common in African ancestry)"
		}
		if p.Phenotype == Ultrarapid || p.Phenotype == RapidToNormal {
			return DoseAdjustment{Kind: AdjustIncrease, Percent: 25}, "Consider increased dose or alternative therapy"
		}
		return DoseAdjustment{Kind: AdjustCaution}, "Consider alternative therapy"
	case UseWithCaution:
		return DoseAdjustment{Kind: AdjustCaution}, "Use with caution - enhanced monitoring recommended"
	default:
		return DoseAdjustment{Kind: AdjustCaution}, "Clinical monitoring recommended - limited evidence"
	}
}
