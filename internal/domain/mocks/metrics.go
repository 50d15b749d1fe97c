package mocks

import (
	"sync"

	"github.com/ersonp/kinship/internal/domain/ports"
)

var _ ports.Metrics = (*Metrics)(nil)

// Metrics records every observation as "operation:outcome".
type Metrics struct {
	mu            sync.Mutex
	Operations    []string
	IndexFailures []string
}

// RecordOperation records an operation outcome.
func (m *Metrics) RecordOperation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Operations = append(m.Operations, operation+":"+outcome)
}

// RecordIndexFailure records a failed index write.
func (m *Metrics) RecordIndexFailure(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IndexFailures = append(m.IndexFailures, operation)
}
