package graph

import "errors"

var (
	// ErrCacheLoadFailed matches every *LoadError via errors.Is.
	ErrCacheLoadFailed = errors.New("graph cache load failed")

	// ErrBrokenPredecessorChain means a BFS predecessor chain did not lead
	// back to the start node. It indicates a bug, not bad input.
	ErrBrokenPredecessorChain = errors.New("graph: predecessor chain does not reach start")
)

// LoadError wraps the store failure that prevented a snapshot build.
// The previously published snapshot, if any, stays in place.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "graph: cache load failed: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCacheLoadFailed) match.
func (e *LoadError) Is(target error) bool {
	return target == ErrCacheLoadFailed
}
