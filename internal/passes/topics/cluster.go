package topics

import (
	"github.com/iceymoss/discovery-engine/pkg/vector"
)

// Item is one artifact in embedding space.
type Item struct {
	ID  uint64
	Vec []float32
}

// Cluster is a group of items with a running centroid.
type Cluster struct {
	Members  []Item
	Centroid []float32
}

// Greedy is a single-pass clustering: each item joins the best existing
// cluster above the similarity threshold or starts a new one. Deterministic
// for a given input order; callers feed items ordered by (published, id).
func Greedy(items []Item, simThreshold float64) []Cluster {
	var clusters []*Cluster
	for _, item := range items {
		bestIdx := -1
		bestSim := simThreshold
		for i, c := range clusters {
			sim := vector.Cosine(item.Vec, c.Centroid)
			if sim >= bestSim {
				bestSim = sim
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			clusters = append(clusters, &Cluster{
				Members:  []Item{item},
				Centroid: append([]float32(nil), item.Vec...),
			})
			continue
		}
		c := clusters[bestIdx]
		c.Members = append(c.Members, item)
		c.Centroid = recenter(c)
	}

	out := make([]Cluster, len(clusters))
	for i, c := range clusters {
		out[i] = *c
	}
	return out
}

func recenter(c *Cluster) []float32 {
	vecs := make([][]float32, len(c.Members))
	for i, m := range c.Members {
		vecs[i] = m.Vec
	}
	return vector.Mean(vecs)
}

// Coherence is the mean cosine similarity of members to their centroid.
// A tight topic scores near 1.
func Coherence(members [][]float32, centroid []float32) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += vector.Cosine(m, centroid)
	}
	return sum / float64(len(members))
}
