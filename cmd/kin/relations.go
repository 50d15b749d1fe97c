package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/domain/entities"
)

type relationsFlags struct {
	subject int64
	object  int64
	typeRef string
	locale  string
	format  string
}

func newRelationsCmd() *cobra.Command {
	var flags relationsFlags

	cmd := &cobra.Command{
		Use:   "relations",
		Short: "List relationships",
		Long: `Lists relationships, optionally filtered by subject, object and type.

Examples:
  kin relations
  kin relations --subject 1
  kin relations --object 2 --type mother --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, flags)
		},
	}

	cmd.Flags().Int64Var(&flags.subject, "subject", 0, "Filter by subject person ID")
	cmd.Flags().Int64Var(&flags.object, "object", 0, "Filter by object person ID")
	cmd.Flags().StringVar(&flags.typeRef, "type", "", "Filter by type: kind name or type ID")
	cmd.Flags().StringVar(&flags.locale, "locale", entities.DefaultLocale, "Locale used to resolve kind names")
	cmd.Flags().StringVar(&flags.format, "format", "table", "Output format: table, json")

	cmd.AddCommand(newRelationsShowCmd())
	cmd.AddCommand(newRelationsHistoryCmd())

	return cmd
}

func runRelations(cmd *cobra.Command, flags relationsFlags) error {
	if err := validateFormat(flags.format); err != nil {
		return err
	}
	ctx := cmd.Context()

	var filter entities.EdgeFilter
	if cmd.Flags().Changed("subject") {
		filter.SubjectID = entities.Int64(flags.subject)
	}
	if cmd.Flags().Changed("object") {
		filter.ObjectID = entities.Int64(flags.object)
	}

	return withDeps(ctx, func(d *Deps) error {
		if cmd.Flags().Changed("type") {
			typeID, err := d.Relationships.ResolveTypeRef(ctx, flags.typeRef, flags.locale)
			if err != nil {
				return fmt.Errorf("resolving relationship type: %w", err)
			}
			filter.TypeID = entities.Int64(typeID)
		}

		relationships, err := d.Relationships.HandleList(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}

		if flags.format == "json" {
			return printJSON(cmd.OutOrStdout(), relationships)
		}
		if len(relationships) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No relationships found.")
			return nil
		}
		return printRelationsTable(cmd.OutOrStdout(), relationships)
	})
}

func newRelationsShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <relationship-id>",
		Short: "Show one relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()

			id, err := parseIDArg("relationship", args[0])
			if err != nil {
				return err
			}

			return withDeps(ctx, func(d *Deps) error {
				resolved, err := d.Relationships.HandleGet(ctx, id)
				if err != nil {
					return fmt.Errorf("getting relationship: %w", err)
				}
				if format == "json" {
					return printJSON(cmd.OutOrStdout(), resolved)
				}
				return printRelationsTable(cmd.OutOrStdout(), []entities.ResolvedEdge{*resolved})
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	return cmd
}

func newRelationsHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <relationship-id>",
		Short: "Show the audit trail of a relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()

			id, err := parseIDArg("relationship", args[0])
			if err != nil {
				return err
			}

			return withDeps(ctx, func(d *Deps) error {
				entries, err := d.Relationships.HandleHistory(ctx, id)
				if err != nil {
					return fmt.Errorf("getting history: %w", err)
				}
				if format == "json" {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				return printHistoryTable(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	return cmd
}

func validateFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid: table, json)", format)
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printRelationsTable(w io.Writer, relationships []entities.ResolvedEdge) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tKIND\tOBJECT\tUPDATED")
	for i := range relationships {
		r := &relationships[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			personName(r.Subject, r.SubjectID),
			r.Kind(),
			personName(r.Object, r.ObjectID),
			r.UpdatedAt.Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func printHistoryTable(w io.Writer, entries []entities.AuditEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tDETAILS")
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			data, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("marshaling details: %w", err)
			}
			details = string(data)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Action, details)
	}
	return tw.Flush()
}
