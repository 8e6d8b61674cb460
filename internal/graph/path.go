package graph

import (
	"github.com/starford/sixthdegree/internal/models"
)

// PathResult is the outcome of one shortest-path traversal.
//
// PathLength is len(Path)-1, so an unsuccessful search reports -1.
type PathResult struct {
	Path          []models.Person
	PathLength    int
	NodesExplored int
	Found         bool
}

// ShortestPath runs a breadth-first search from startID to endID over the
// snapshot's directed edges.
//
// Nodes are marked visited when discovered and the target is checked when
// dequeued, before its neighbors are expanded; NodesExplored counts
// dequeues. The first discovery of a node fixes its predecessor, so among
// several equally short paths the one reached through earlier-stored edges
// wins.
func (s *Snapshot) ShortestPath(startID, endID int64) (PathResult, error) {
	if startID == endID {
		path := []models.Person{}
		if p, ok := s.Person(startID); ok {
			path = append(path, p)
		}
		return PathResult{Path: path, PathLength: 0, NodesExplored: 1, Found: true}, nil
	}

	start, ok := s.index[startID]
	if !ok {
		// A start node unknown to the snapshot is dequeued once and has no edges.
		return notFound(1), nil
	}
	end, ok := s.index[endID]
	if !ok {
		end = -1
	}

	n := len(s.ids)
	visited := make([]bool, n)
	pred := make([]int32, n)
	for i := range pred {
		pred[i] = -1
	}

	queue := make([]int32, 0, 64)
	queue = append(queue, start)
	visited[start] = true

	explored := 0
	found := false
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		explored++

		if cur == end {
			found = true
			break
		}

		for _, nb := range s.adj[cur] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			pred[nb] = cur
			queue = append(queue, nb)
		}
	}

	if !found {
		return notFound(explored), nil
	}

	idxs, err := reconstructPath(pred, start, end)
	if err != nil {
		return PathResult{}, err
	}
	path := s.personsAt(idxs)
	return PathResult{
		Path:          path,
		PathLength:    len(path) - 1,
		NodesExplored: explored,
		Found:         true,
	}, nil
}

func notFound(explored int) PathResult {
	return PathResult{Path: []models.Person{}, PathLength: -1, NodesExplored: explored}
}

// reconstructPath walks pred back from end to start and returns the dense
// indices in start-to-end order.
func reconstructPath(pred []int32, start, end int32) ([]int32, error) {
	rev := []int32{}
	for cur := end; cur != start; {
		if len(rev) >= len(pred) {
			return nil, ErrBrokenPredecessorChain
		}
		rev = append(rev, cur)
		cur = pred[cur]
		if cur < 0 {
			return nil, ErrBrokenPredecessorChain
		}
	}
	rev = append(rev, start)

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}
