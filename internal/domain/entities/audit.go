package entities

import "time"

// Audit actions recorded for edge mutations.
const (
	AuditEdgeCreated = "edge.created"
	AuditEdgeUpdated = "edge.updated"
	AuditEdgeDeleted = "edge.deleted"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EdgeID    int64          `json:"edgeId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TripleDetails renders a triple for an audit entry.
func TripleDetails(t Triple) map[string]any {
	return map[string]any{
		"userId":         t.SubjectID,
		"relatedUserId":  t.ObjectID,
		"relationshipId": t.TypeID,
	}
}
