package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawEdge
	}{
		{
			name:  "kind name",
			input: `[{"userId": 1, "relatedUserId": 2, "relationship": "mother"}]`,
			expected: []RawEdge{
				{SubjectID: 1, ObjectID: 2, Relationship: "mother", LineNum: 1},
			},
		},
		{
			name:  "with locale",
			input: `[{"userId": 1, "relatedUserId": 2, "relationship": "sister"}, {"userId": 3, "relatedUserId": 1, "relationship": "7", "locale": "fr_FR"}]`,
			expected: []RawEdge{
				{SubjectID: 1, ObjectID: 2, Relationship: "sister", LineNum: 1},
				{SubjectID: 3, ObjectID: 1, Relationship: "7", Locale: "fr_FR", LineNum: 2},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawEdge{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}

	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)

	_, err = parser.Parse(strings.NewReader(`[{"userId": 1, "friend": 2}]`))
	require.Error(t, err)
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawEdge
	}{
		{
			name:  "required columns only",
			input: "userId,relatedUserId,relationship\n1,2,mother\n",
			expected: []RawEdge{
				{SubjectID: 1, ObjectID: 2, Relationship: "mother", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "userId,relatedUserId,relationship\n",
			expected: nil,
		},
		{
			name:  "columns in different order with locale",
			input: "locale,relationship,relatedUserId,userId\nen_US,father_in_law,4,3\n",
			expected: []RawEdge{
				{SubjectID: 3, ObjectID: 4, Relationship: "father_in_law", Locale: "en_US", LineNum: 2},
			},
		},
		{
			name:  "empty id is not supplied",
			input: "userId,relatedUserId,relationship\n,2,mother\n",
			expected: []RawEdge{
				{SubjectID: 0, ObjectID: 2, Relationship: "mother", LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "missing required column",
			input:  "userId,relatedUserId\n1,2\n",
			errMsg: "missing required column: relationship",
		},
		{
			name:   "invalid id",
			input:  "userId,relatedUserId,relationship\n1,two,mother\n",
			errMsg: "line 2: invalid relatedUserId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &CSVParser{}, ForFormat("CSV"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("family.json"))
	assert.IsType(t, &CSVParser{}, ForFile("data.csv"))
	assert.Nil(t, ForFile("file.txt"))
	assert.Nil(t, ForFile("noextension"))
}
