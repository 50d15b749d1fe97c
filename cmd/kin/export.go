package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/domain/entities"
	"github.com/ersonp/kinship/internal/infrastructure/parsers"
)

// Valid export formats. Both can be read back by import.
var validFormats = []string{"json", "csv"}

type exportFlags struct {
	format string
	output string
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export relationships to file",
		Long:  "Exports every relationship in the format accepted by import.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, flags exportFlags) error {
	if !contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		relationships, err := d.Relationships.HandleList(ctx, entities.EdgeFilter{})
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}
		return export(cmd.OutOrStdout(), flags, toRows(relationships))
	})
}

func export(stdout io.Writer, flags exportFlags, rows []parsers.RawEdge) (err error) {
	w := stdout
	if flags.output != "" {
		var f *os.File
		f, err = os.OpenFile(flags.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	}

	switch flags.format {
	case "csv":
		err = formatCSV(w, rows)
	default:
		err = formatJSON(w, rows)
	}
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if flags.output != "" {
		fmt.Fprintf(stdout, "Exported %d relationships to %s\n", len(rows), flags.output)
	}
	return nil
}

// toRows converts relationships to import rows. A type that no longer
// resolves is written by ID.
func toRows(relationships []entities.ResolvedEdge) []parsers.RawEdge {
	rows := make([]parsers.RawEdge, 0, len(relationships))
	for i := range relationships {
		r := &relationships[i]
		row := parsers.RawEdge{
			SubjectID:    r.SubjectID,
			ObjectID:     r.ObjectID,
			Relationship: strconv.FormatInt(r.TypeID, 10),
		}
		if r.Type != nil {
			row.Relationship = string(r.Type.Kind)
			row.Locale = r.Type.Locale
		}
		rows = append(rows, row)
	}
	return rows
}

func formatJSON(w io.Writer, rows []parsers.RawEdge) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

func formatCSV(w io.Writer, rows []parsers.RawEdge) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"userId", "relatedUserId", "relationship", "locale"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.SubjectID, 10),
			strconv.FormatInt(r.ObjectID, 10),
			r.Relationship,
			r.Locale,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
