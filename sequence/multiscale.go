package sequence

import (
	"github.com/luminous-dynamics/hdc/errdefs"
	"github.com/luminous-dynamics/hdc/hypervector"
)

// DefaultScales are the k-mer lengths bundled by EncodeMultiScale.
var DefaultScales = []int{4, 6, 8}

// Scale is the encoding of one k-mer length within a multi-scale result.
type Scale struct {
	K         int                `json:"k"`
	KmerCount int                `json:"kmer_count"`
	Vector    hypervector.Vector `json:"vector"`
}

// MultiScale bundles encodings at several k-mer lengths, so short motifs
// and longer context both contribute.
type MultiScale struct {
	Vector hypervector.Vector `json:"vector"`
	Scales []Scale            `json:"scales"`
	Length int                `json:"length"`
}

// EncodeMultiScale encodes seq at each of scales (DefaultScales when
// empty) and bundles the results. Scales longer than the sequence are
// skipped; if none fit, it is an encoding error.
func (e *Encoder) EncodeMultiScale(seq string, scales ...int) (MultiScale, error) {
	if len(scales) == 0 {
		scales = DefaultScales
	}
	for _, k := range scales {
		if k < 1 || k > MaxK {
			return MultiScale{}, errdefs.Configuration("scales", "k-mer length out of range")
		}
	}

	norm, _, err := e.normalize(seq)
	if err != nil {
		return MultiScale{}, err
	}

	out := MultiScale{Length: len(norm)}
	vs := make([]hypervector.Vector, 0, len(scales))
	for _, k := range scales {
		if len(norm) < k {
			continue
		}
		v, n, err := e.encodeK(norm, k)
		if err != nil {
			return MultiScale{}, err
		}
		out.Scales = append(out.Scales, Scale{K: k, KmerCount: n, Vector: v})
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		return MultiScale{}, errdefs.Encoding("sequence length %d is shorter than every scale", len(norm))
	}

	out.Vector, err = hypervector.Bundle(vs...)
	return out, err
}

// ScaleSimilarity returns the per-scale similarity of two multi-scale
// encodings, for scales present in both.
func ScaleSimilarity(a, b MultiScale) map[int]float64 {
	byK := make(map[int]hypervector.Vector, len(b.Scales))
	for _, s := range b.Scales {
		byK[s.K] = s.Vector
	}
	out := make(map[int]float64, len(a.Scales))
	for _, s := range a.Scales {
		if v, ok := byK[s.K]; ok {
			out[s.K] = hypervector.Similarity(s.Vector, v)
		}
	}
	return out
}
