package pgx

import (
	"fmt"

	"github.com/luminous-dynamics/hdc/errdefs"
)

// DrugRecommendation is the outcome of checking a drug against a profile.
type DrugRecommendation struct {
	Drug           string         `json:"drug"`
	Gene           string         `json:"gene"`
	Phenotype      Phenotype      `json:"phenotype"`
	ActivityScore  float64        `json:"activity_score"`
	Recommendation Recommendation `json:"recommendation"`
	Rationale      string         `json:"rationale"`
}

// PredictInteractions looks up the gene governing drug and applies that
// gene's phenotype rules to the profile's diplotype. An unknown drug, or
// a profile without the governing gene, is an UnknownSymbolError.
func (e *Encoder) PredictInteractions(p Profile, drug string) (DrugRecommendation, error) {
	gene, err := e.tables.DrugGene(drug)
	if err != nil {
		return DrugRecommendation{}, err
	}
	d, ok := p.Diplotype(gene)
	if !ok {
		return DrugRecommendation{}, &errdefs.UnknownSymbolError{Kind: "gene", Symbol: gene, Scope: "profile"}
	}
	g, err := e.tables.Gene(gene)
	if err != nil {
		return DrugRecommendation{}, err
	}

	rec := g.Recommend(d.Phenotype)
	return DrugRecommendation{
		Drug:           normalizeDrug(drug),
		Gene:           gene,
		Phenotype:      d.Phenotype,
		ActivityScore:  d.ActivityScore,
		Recommendation: rec,
		Rationale:      fmt.Sprintf("%s: %s (activity %.2f); %s", d.Notation(), d.Phenotype, d.ActivityScore, rec),
	}, nil
}

// PredictAll checks every supported drug whose gene is in the profile.
// Results are sorted by drug name.
func (e *Encoder) PredictAll(p Profile) []DrugRecommendation {
	var out []DrugRecommendation
	for _, drug := range e.tables.SupportedDrugs() {
		rec, err := e.PredictInteractions(p, drug)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}
