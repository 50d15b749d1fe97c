package entities

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgePatch_Apply(t *testing.T) {
	current := Triple{SubjectID: 1, ObjectID: 2, TypeID: 3}

	tests := []struct {
		name     string
		patch    EdgePatch
		expected Triple
	}{
		{name: "empty patch keeps current", patch: EdgePatch{}, expected: current},
		{name: "subject only", patch: EdgePatch{SubjectID: Int64(4)}, expected: Triple{4, 2, 3}},
		{name: "object only", patch: EdgePatch{ObjectID: Int64(5)}, expected: Triple{1, 5, 3}},
		{name: "type only", patch: EdgePatch{TypeID: Int64(6)}, expected: Triple{1, 2, 6}},
		{name: "all fields", patch: EdgePatch{Int64(7), Int64(8), Int64(9)}, expected: Triple{7, 8, 9}},
		{name: "explicit zero is applied", patch: EdgePatch{ObjectID: Int64(0)}, expected: Triple{1, 0, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.patch.Apply(current))
		})
	}
}

func TestEdgePatch_IsEmpty(t *testing.T) {
	assert.True(t, EdgePatch{}.IsEmpty())
	assert.False(t, EdgePatch{TypeID: Int64(0)}.IsEmpty())
}

func TestEdgeFilter_Matches(t *testing.T) {
	edge := &Edge{ID: 10, SubjectID: 1, ObjectID: 2, TypeID: 3}

	tests := []struct {
		filter   EdgeFilter
		expected bool
	}{
		{EdgeFilter{}, true},
		{EdgeFilter{SubjectID: Int64(1)}, true},
		{EdgeFilter{SubjectID: Int64(2)}, false},
		{EdgeFilter{SubjectID: Int64(1), ObjectID: Int64(2), TypeID: Int64(3)}, true},
		{EdgeFilter{SubjectID: Int64(1), TypeID: Int64(4)}, false},
		{EdgeFilter{ObjectID: Int64(2)}, true},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(edge))
		})
	}
}

func TestTriple_IsSelf(t *testing.T) {
	assert.True(t, Triple{SubjectID: 1, ObjectID: 1, TypeID: 3}.IsSelf())
	assert.False(t, Triple{SubjectID: 1, ObjectID: 2, TypeID: 3}.IsSelf())
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("creating edge: %w", ErrDuplicateEdge)
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsRetryable(wrapped))

	storage := fmt.Errorf("%w: disk I/O error", ErrStorage)
	assert.True(t, IsRetryable(storage))
	assert.False(t, IsValidation(storage))

	assert.True(t, IsNotFound(fmt.Errorf("subject 9: %w", ErrPersonNotFound)))
	assert.True(t, IsNotFound(ErrEdgeNotFound))
	assert.True(t, IsValidation(ErrSelfRelationship))
}

func TestResolvedEdge_Kind(t *testing.T) {
	r := &ResolvedEdge{}
	assert.Equal(t, "unknown", r.Kind())

	r.Type = &RelationshipType{Kind: KindSister}
	assert.Equal(t, "sister", r.Kind())
}
