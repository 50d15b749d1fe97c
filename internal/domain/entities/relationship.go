package entities

import "time"

// Edge is a directed relationship: Subject is <Type> of Object.
// (A,B,mother) and (B,A,mother) are distinct edges.
type Edge struct {
	ID        int64     `json:"id"`
	SubjectID int64     `json:"userId"`
	ObjectID  int64     `json:"relatedUserId"`
	TypeID    int64     `json:"relationshipId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Triple is the (subject, object, type) combination that must be unique
// among present edges.
type Triple struct {
	SubjectID int64 `json:"userId"`
	ObjectID  int64 `json:"relatedUserId"`
	TypeID    int64 `json:"relationshipId"`
}

// Triple returns the edge's triple.
func (e *Edge) Triple() Triple {
	return Triple{SubjectID: e.SubjectID, ObjectID: e.ObjectID, TypeID: e.TypeID}
}

// IsSelf reports whether the triple points a person at themselves.
func (t Triple) IsSelf() bool {
	return t.SubjectID == t.ObjectID
}

// EdgeInput carries the fields for creating an edge. Zero means not supplied.
type EdgeInput struct {
	SubjectID int64 `json:"userId"`
	ObjectID  int64 `json:"relatedUserId"`
	TypeID    int64 `json:"relationshipId"`
}

// Triple returns the input as a triple.
func (in EdgeInput) Triple() Triple {
	return Triple{SubjectID: in.SubjectID, ObjectID: in.ObjectID, TypeID: in.TypeID}
}

// EdgePatch is a partial update. A nil field was not supplied and keeps its
// current value; a non-nil field was supplied, even when it equals the
// current value.
type EdgePatch struct {
	SubjectID *int64 `json:"userId,omitempty"`
	ObjectID  *int64 `json:"relatedUserId,omitempty"`
	TypeID    *int64 `json:"relationshipId,omitempty"`
}

// IsEmpty reports whether no field was supplied.
func (p EdgePatch) IsEmpty() bool {
	return p.SubjectID == nil && p.ObjectID == nil && p.TypeID == nil
}

// Apply merges the patch onto current and returns the candidate triple.
func (p EdgePatch) Apply(current Triple) Triple {
	candidate := current
	if p.SubjectID != nil {
		candidate.SubjectID = *p.SubjectID
	}
	if p.ObjectID != nil {
		candidate.ObjectID = *p.ObjectID
	}
	if p.TypeID != nil {
		candidate.TypeID = *p.TypeID
	}
	return candidate
}

// EdgeFilter selects edges by exact match on every non-nil field.
type EdgeFilter struct {
	SubjectID *int64
	ObjectID  *int64
	TypeID    *int64
}

// Matches reports whether e satisfies every supplied filter.
func (f EdgeFilter) Matches(e *Edge) bool {
	if f.SubjectID != nil && e.SubjectID != *f.SubjectID {
		return false
	}
	if f.ObjectID != nil && e.ObjectID != *f.ObjectID {
		return false
	}
	if f.TypeID != nil && e.TypeID != *f.TypeID {
		return false
	}
	return true
}

// ResolvedEdge is an edge with its endpoints and type attached for
// presentation. A reference that no longer resolves is nil.
type ResolvedEdge struct {
	Edge
	Subject *Person           `json:"user"`
	Object  *Person           `json:"relatedUser"`
	Type    *RelationshipType `json:"relationship"`
}

// Kind returns the resolved kind, or "unknown" when the type is missing.
func (r *ResolvedEdge) Kind() string {
	if r.Type == nil {
		return "unknown"
	}
	return string(r.Type.Kind)
}

// Int64 returns a pointer to v, for building patches and filters.
func Int64(v int64) *int64 {
	return &v
}
