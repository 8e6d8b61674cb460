package graph

import "strconv"

// Node is one vertex of the visualization export.
type Node struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Category *string `json:"category"`
}

// Edge is one directed edge of the visualization export.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Export is the node/edge payload consumed by graph visualizers.
type Export struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Export lists one node per person and one edge per adjacency entry, so
// duplicate connections produce duplicate edges.
func (s *Snapshot) Export() Export {
	out := Export{
		Nodes: make([]Node, 0, s.known),
		Edges: make([]Edge, 0, s.edges),
	}
	for _, p := range s.persons {
		if p == nil {
			continue
		}
		out.Nodes = append(out.Nodes, Node{
			ID:       strconv.FormatInt(p.ID, 10),
			Label:    p.Name,
			Category: p.Category,
		})
	}
	for from, nbs := range s.adj {
		source := strconv.FormatInt(s.ids[from], 10)
		for _, to := range nbs {
			out.Edges = append(out.Edges, Edge{
				Source: source,
				Target: strconv.FormatInt(s.ids[to], 10),
			})
		}
	}
	return out
}
