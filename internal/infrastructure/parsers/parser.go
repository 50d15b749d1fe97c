// Package parsers reads relationship rows for bulk import.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawEdge is a relationship row read from a file, before validation.
// Relationship holds either a kind name or a numeric type ID.
type RawEdge struct {
	SubjectID    int64  `json:"userId"`
	ObjectID     int64  `json:"relatedUserId"`
	Relationship string `json:"relationship"`
	Locale       string `json:"locale,omitempty"`
	LineNum      int    `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing relationship rows.
type Parser interface {
	Parse(r io.Reader) ([]RawEdge, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
