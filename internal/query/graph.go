package query

import (
	"context"

	"github.com/iceymoss/discovery-engine/pkg/db/objects"
)

// GraphNode is one artifact in a citation graph response.
type GraphNode struct {
	ArtifactID uint64 `json:"artifact_id"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	Depth      int    `json:"depth"`
}

// GraphEdge is one relationship in a citation graph response.
type GraphEdge struct {
	SourceArtifactID uint64  `json:"source_artifact_id"`
	TargetArtifactID uint64  `json:"target_artifact_id"`
	Type             string  `json:"type"`
	Confidence       float64 `json:"confidence"`
	DetectionMethod  string  `json:"detection_method"`
}

// Graph is the bounded-depth citation graph rooted at one artifact.
type Graph struct {
	Root  uint64      `json:"root"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type edgeLister interface {
	ListFrom(ctx context.Context, sourceIDs []uint64, minConfidence float64) ([]*objects.ArtifactRelationship, error)
}

type artifactLister interface {
	ListByIDs(ctx context.Context, ids []uint64) ([]*objects.Artifact, error)
}

// traverse runs a breadth-first expansion from the root, one store round-trip
// per depth level. The visited set guarantees termination on cyclic graphs.
func traverse(ctx context.Context, edges edgeLister, artifacts artifactLister,
	rootID uint64, maxDepth int, minConfidence float64) (*Graph, error) {

	graph := &Graph{Root: rootID}
	visited := map[uint64]int{rootID: 0}
	frontier := []uint64{rootID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		outgoing, err := edges.ListFrom(ctx, frontier, minConfidence)
		if err != nil {
			return nil, err
		}

		var next []uint64
		for _, edge := range outgoing {
			graph.Edges = append(graph.Edges, GraphEdge{
				SourceArtifactID: edge.SourceArtifactID,
				TargetArtifactID: edge.TargetArtifactID,
				Type:             edge.Type,
				Confidence:       edge.Confidence,
				DetectionMethod:  edge.DetectionMethod,
			})
			if _, seen := visited[edge.TargetArtifactID]; !seen {
				visited[edge.TargetArtifactID] = depth + 1
				next = append(next, edge.TargetArtifactID)
			}
		}
		frontier = next
	}

	ids := make([]uint64, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	rows, err := artifacts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range rows {
		graph.Nodes = append(graph.Nodes, GraphNode{
			ArtifactID: a.ID,
			Title:      a.Title,
			Source:     a.Source,
			Depth:      visited[a.ID],
		})
	}
	return graph, nil
}
