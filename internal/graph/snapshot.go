// Package graph holds the in-memory relationship graph and the
// breadth-first shortest-path engine that runs over it.
//
// # Snapshots
//
// A Snapshot is built from one read of the person/connection store and is
// never modified afterwards. Store ids are remapped to dense indices so the
// traversal works on slices rather than maps, whatever the id distribution.
//
// # Thread Safety
//
// Snapshot is safe for concurrent reads. Cache publishes snapshots through an
// atomic pointer; a reader that loaded a snapshot keeps a consistent view of
// it even if a reload swaps in a newer one.
package graph

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/sixthdegree/internal/models"
)

// Snapshot is one immutable build of the graph cache.
type Snapshot struct {
	Version uuid.UUID
	BuiltAt time.Time

	ids     []int64          // dense index -> store id
	index   map[int64]int32  // store id -> dense index
	persons []*models.Person // dense index -> person; nil for ids with no person record
	adj     [][]int32        // dense index -> outgoing neighbors in connection order
	known   int
	edges   int
}

// NewSnapshot builds a snapshot. persons fixes the node order; every person
// gets an adjacency slot, so isolated nodes are present with no neighbors.
// Connection endpoints without a person record still get a slot.
func NewSnapshot(persons []models.Person, conns []models.Connection) *Snapshot {
	s := &Snapshot{
		Version: uuid.New(),
		BuiltAt: time.Now(),
		ids:     make([]int64, 0, len(persons)),
		index:   make(map[int64]int32, len(persons)),
		persons: make([]*models.Person, 0, len(persons)),
		adj:     make([][]int32, 0, len(persons)),
	}

	for i := range persons {
		p := persons[i]
		idx := s.slot(p.ID)
		if s.persons[idx] == nil {
			s.known++
		}
		s.persons[idx] = &p
	}

	for _, c := range conns {
		from := s.slot(c.FromPersonID)
		to := s.slot(c.ToPersonID)
		s.adj[from] = append(s.adj[from], to)
		s.edges++
	}
	return s
}

// slot returns the dense index for id, allocating one if needed.
func (s *Snapshot) slot(id int64) int32 {
	if idx, ok := s.index[id]; ok {
		return idx
	}
	idx := int32(len(s.ids))
	s.index[id] = idx
	s.ids = append(s.ids, id)
	s.persons = append(s.persons, nil)
	s.adj = append(s.adj, nil)
	return idx
}

// PersonCount returns the number of persons held by the snapshot.
func (s *Snapshot) PersonCount() int { return s.known }

// EdgeCount returns the number of directed adjacency entries.
func (s *Snapshot) EdgeCount() int { return s.edges }

// Person returns the cached record for id.
func (s *Snapshot) Person(id int64) (models.Person, bool) {
	idx, ok := s.index[id]
	if !ok || s.persons[idx] == nil {
		return models.Person{}, false
	}
	return *s.persons[idx], true
}

// Neighbors returns the outgoing neighbor ids of id in stored order.
func (s *Snapshot) Neighbors(id int64) []int64 {
	idx, ok := s.index[id]
	if !ok {
		return nil
	}
	out := make([]int64, len(s.adj[idx]))
	for i, nb := range s.adj[idx] {
		out[i] = s.ids[nb]
	}
	return out
}

// personsAt maps dense indices to person records, dropping indices that
// have no record.
func (s *Snapshot) personsAt(idxs []int32) []models.Person {
	out := make([]models.Person, 0, len(idxs))
	for _, idx := range idxs {
		if p := s.persons[idx]; p != nil {
			out = append(out, *p)
		}
	}
	return out
}
