package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/domain/entities"
)

func newRelateCmd() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "relate <subject-id> <kind|type-id> <object-id>",
		Short: "Create a relationship between two people",
		Long: `Records that the subject is <kind> of the object. The type is either a
numeric type ID or a kind name looked up under --locale.

Examples:
  kin relate 1 mother 2
  kin relate 3 sister 2 --locale en_US
  kin relate 1 4 2`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(cmd, args, locale)
		},
	}

	cmd.Flags().StringVar(&locale, "locale", entities.DefaultLocale, "Locale used to resolve kind names")

	cmd.AddCommand(newRelateUpdateCmd())
	cmd.AddCommand(newRelateDeleteCmd())

	return cmd
}

func runRelate(cmd *cobra.Command, args []string, locale string) error {
	ctx := cmd.Context()

	subject, err := parseIDArg("subject", args[0])
	if err != nil {
		return err
	}
	object, err := parseIDArg("object", args[2])
	if err != nil {
		return err
	}

	return withDeps(ctx, func(d *Deps) error {
		typeID, err := d.Relationships.ResolveTypeRef(ctx, args[1], locale)
		if err != nil {
			return fmt.Errorf("resolving relationship type: %w", err)
		}

		resolved, err := d.Relationships.HandleCreate(ctx, entities.EdgeInput{
			SubjectID: subject,
			ObjectID:  object,
			TypeID:    typeID,
		})
		if err != nil {
			return fmt.Errorf("creating relationship: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created relationship %d\n", resolved.ID)
		printEdgeLine(cmd.OutOrStdout(), resolved)
		return nil
	})
}

type relateUpdateFlags struct {
	subject int64
	object  int64
	typeRef string
	locale  string
}

func newRelateUpdateCmd() *cobra.Command {
	var flags relateUpdateFlags

	cmd := &cobra.Command{
		Use:   "update <relationship-id>",
		Short: "Change the subject, object or type of a relationship",
		Long: `Updates only the fields given as flags; the rest keep their values.

Examples:
  kin relate update 7 --type sister
  kin relate update 7 --subject 3 --object 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelateUpdate(cmd, args[0], flags)
		},
	}

	cmd.Flags().Int64Var(&flags.subject, "subject", 0, "New subject person ID")
	cmd.Flags().Int64Var(&flags.object, "object", 0, "New object person ID")
	cmd.Flags().StringVar(&flags.typeRef, "type", "", "New type: kind name or type ID")
	cmd.Flags().StringVar(&flags.locale, "locale", entities.DefaultLocale, "Locale used to resolve kind names")

	return cmd
}

func runRelateUpdate(cmd *cobra.Command, rawID string, flags relateUpdateFlags) error {
	ctx := cmd.Context()

	id, err := parseIDArg("relationship", rawID)
	if err != nil {
		return err
	}

	var patch entities.EdgePatch
	if cmd.Flags().Changed("subject") {
		patch.SubjectID = entities.Int64(flags.subject)
	}
	if cmd.Flags().Changed("object") {
		patch.ObjectID = entities.Int64(flags.object)
	}

	return withDeps(ctx, func(d *Deps) error {
		if cmd.Flags().Changed("type") {
			typeID, err := d.Relationships.ResolveTypeRef(ctx, flags.typeRef, flags.locale)
			if err != nil {
				return fmt.Errorf("resolving relationship type: %w", err)
			}
			patch.TypeID = entities.Int64(typeID)
		}

		resolved, err := d.Relationships.HandleUpdate(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("updating relationship: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated relationship %d\n", resolved.ID)
		printEdgeLine(cmd.OutOrStdout(), resolved)
		return nil
	})
}

func newRelateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <relationship-id>",
		Short: "Delete a relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseIDArg("relationship", args[0])
			if err != nil {
				return err
			}

			return withDeps(ctx, func(d *Deps) error {
				if err := d.Relationships.HandleDelete(ctx, id); err != nil {
					return fmt.Errorf("deleting relationship: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted relationship %d\n", id)
				return nil
			})
		},
	}
}

func parseIDArg(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s ID %q", name, raw)
	}
	return id, nil
}

// printEdgeLine writes "  Alice -[mother]-> Bob".
func printEdgeLine(w io.Writer, r *entities.ResolvedEdge) {
	fmt.Fprintf(w, "  %s -[%s]-> %s\n", personName(r.Subject, r.SubjectID), r.Kind(), personName(r.Object, r.ObjectID))
}

func personName(p *entities.Person, id int64) string {
	if p == nil {
		return fmt.Sprintf("#%d (missing)", id)
	}
	return p.FullName
}
