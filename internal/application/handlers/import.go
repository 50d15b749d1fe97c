package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/infrastructure/parsers"
)

// ImportHandler handles importing relationships from files. Every row goes
// through the same validation as a single create.
type ImportHandler struct {
	relationships *RelationshipHandler
}

// NewImportHandler creates a new import handler.
func NewImportHandler(relationships *RelationshipHandler) *ImportHandler {
	return &ImportHandler{
		relationships: relationships,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format string // "json", "csv", or "auto"
	DryRun bool   // Parse and resolve types without saving
}

// ImportError is a row that could not be imported.
type ImportError struct {
	LineNum int
	Err     error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("line %d: %v", e.LineNum, e.Err)
}

func (e ImportError) Unwrap() error {
	return e.Err
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int // already present
	Errors   []ImportError
}

// Handle imports relationships from a file.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}

	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	rows, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	return h.importRows(ctx, rows, opts.DryRun)
}

func (h *ImportHandler) importRows(ctx context.Context, rows []parsers.RawEdge, dryRun bool) (*ImportResult, error) {
	result := &ImportResult{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		typeID, err := h.relationships.ResolveTypeRef(ctx, row.Relationship, row.Locale)
		if err != nil {
			if entities.IsRetryable(err) {
				return result, err
			}
			result.Errors = append(result.Errors, ImportError{LineNum: row.LineNum, Err: err})
			continue
		}
		if dryRun {
			result.Imported++
			continue
		}

		_, err = h.relationships.HandleCreate(ctx, entities.EdgeInput{
			SubjectID: row.SubjectID,
			ObjectID:  row.ObjectID,
			TypeID:    typeID,
		})
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, entities.ErrDuplicateEdge):
			result.Skipped++
		case entities.IsRetryable(err), errors.Is(err, context.Canceled):
			return result, err
		default:
			result.Errors = append(result.Errors, ImportError{LineNum: row.LineNum, Err: err})
		}
	}
	return result, nil
}
