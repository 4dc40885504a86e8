package graph

import "errors"

var (
	// ErrUnreachable indicates the graph database could not be reached.
	ErrUnreachable = errors.New("graph database unreachable")

	// ErrWriteFailed indicates the store rejected a write after retries.
	ErrWriteFailed = errors.New("graph write failed")

	// ErrDisallowedType indicates a node label or relationship type outside
	// the configured allow-lists reached the writer. Labels cannot be
	// parameterized in queries, so anything interpolated must pass this gate.
	ErrDisallowedType = errors.New("node or relationship type outside allow-list")
)
