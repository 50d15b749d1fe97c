package ports

// Metrics records outcomes of graph operations.
type Metrics interface {
	// RecordOperation counts an operation by name and outcome
	// (ok, invalid, not_found, conflict, error).
	RecordOperation(operation, outcome string)

	// RecordIndexFailure counts a semantic index write that failed after
	// the graph mutation had already committed.
	RecordIndexFailure(operation string)
}
