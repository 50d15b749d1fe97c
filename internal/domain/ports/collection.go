// Package ports defines interfaces for storage and external service communication.
package ports

import "context"

// CollectionManager handles vector collection lifecycle operations.
// Kept apart from VectorDB so the semantic index can be searched without
// the rights to create or drop collections.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
