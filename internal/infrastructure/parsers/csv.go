package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses relationship rows from CSV.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed rows.
// Expected columns: userId, relatedUserId, relationship, and optionally locale.
func (p *CSVParser) Parse(r io.Reader) ([]RawEdge, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	requiredCols := []string{"userId", "relatedUserId", "relationship"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawEdge, error) {
	var edges []RawEdge
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		edge, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	return edges, nil
}

func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawEdge, error) {
	edge := RawEdge{
		Relationship: getColumn(record, colIndex, "relationship"),
		Locale:       getColumn(record, colIndex, "locale"),
		LineNum:      lineNum,
	}

	var err error
	if edge.SubjectID, err = parseID(getColumn(record, colIndex, "userId")); err != nil {
		return RawEdge{}, fmt.Errorf("line %d: invalid userId: %w", lineNum, err)
	}
	if edge.ObjectID, err = parseID(getColumn(record, colIndex, "relatedUserId")); err != nil {
		return RawEdge{}, fmt.Errorf("line %d: invalid relatedUserId: %w", lineNum, err)
	}

	return edge, nil
}

// parseID parses an ID column. An empty column is 0, meaning not supplied.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
