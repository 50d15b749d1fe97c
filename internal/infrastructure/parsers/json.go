package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses an array of relationship objects.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed rows.
func (p *JSONParser) Parse(r io.Reader) ([]RawEdge, error) {
	var edges []RawEdge

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&edges); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Array index + 1
	for i := range edges {
		edges[i].LineNum = i + 1
	}

	return edges, nil
}
