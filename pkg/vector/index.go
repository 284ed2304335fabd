package vector

import "sort"

// Match is one hit from a similarity search.
type Match struct {
	ID         uint64
	Similarity float64
}

// Index answers top-k-by-cosine queries. The exact scan below is fine at
// moderate corpus sizes; an ANN backend can substitute as long as it honors
// the same contract.
type Index interface {
	Add(id uint64, vec []float32)
	TopK(query []float32, k int) []Match
	Len() int
}

// ScanIndex is a brute-force cosine scan with pre-computed norms.
type ScanIndex struct {
	ids   []uint64
	vecs  [][]float32
	norms []float64
}

func NewScanIndex() *ScanIndex {
	return &ScanIndex{}
}

func (s *ScanIndex) Add(id uint64, vec []float32) {
	s.ids = append(s.ids, id)
	s.vecs = append(s.vecs, vec)
	s.norms = append(s.norms, Norm(vec))
}

func (s *ScanIndex) Len() int { return len(s.ids) }

// TopK returns up to k matches ordered by similarity descending, id ascending
// on ties so results are stable.
func (s *ScanIndex) TopK(query []float32, k int) []Match {
	if k <= 0 || len(s.ids) == 0 {
		return nil
	}
	qNorm := Norm(query)
	matches := make([]Match, 0, len(s.ids))
	for i, id := range s.ids {
		sim := CosineWithNorms(query, s.vecs[i], qNorm, s.norms[i])
		matches = append(matches, Match{ID: id, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
