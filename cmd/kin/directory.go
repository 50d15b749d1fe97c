package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/domain/entities"
)

func newPeopleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Manage the person directory",
		RunE:  runPeopleList,
	}

	cmd.AddCommand(newPeopleAddCmd())
	cmd.AddCommand(newPeopleShowCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all people",
		Args:  cobra.NoArgs,
		RunE:  runPeopleList,
	})

	return cmd
}

func newPeopleAddCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "add <full-name>",
		Short: "Add a person",
		Long: `Adds a person to the directory. Email, when given, must be unique.

Examples:
  kin people add "Alice Smith"
  kin people add Bob --email bob@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				person, err := d.People.HandleAdd(ctx, args[0], email)
				if err != nil {
					return fmt.Errorf("adding person: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added person %d: %s\n", person.ID, person.FullName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")

	return cmd
}

func newPeopleShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <person-id>",
		Short: "Show a person and their relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			id, err := parseIDArg("person", args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				view, err := d.People.HandleGet(ctx, id)
				if err != nil {
					return fmt.Errorf("getting person: %w", err)
				}

				out := cmd.OutOrStdout()
				if format == "json" {
					return printJSON(out, view)
				}

				fmt.Fprintf(out, "Person %d: %s", view.ID, view.FullName)
				if view.Email != "" {
					fmt.Fprintf(out, " <%s>", view.Email)
				}
				fmt.Fprintln(out)
				printPersonEdges(out, "Relationships", view.Relationships)
				printPersonEdges(out, "Inverse relationships", view.InverseRelationships)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")

	return cmd
}

func printPersonEdges(w io.Writer, title string, edges []entities.ResolvedEdge) {
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(edges))
	for i := range edges {
		printEdgeLine(w, &edges[i])
	}
}

func runPeopleList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		people, err := d.People.HandleList(ctx)
		if err != nil {
			return fmt.Errorf("listing people: %w", err)
		}

		if len(people) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No people found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL")
		for _, p := range people {
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.FullName, p.Email)
		}
		return w.Flush()
	})
}

func newTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage relationship types",
		RunE:  runTypesList,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all relationship types",
		Args:  cobra.NoArgs,
		RunE:  runTypesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert any missing default relationship types",
		Args:  cobra.NoArgs,
		RunE:  runTypesSeed,
	})

	return cmd
}

func runTypesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		types, err := d.Types.HandleList(ctx)
		if err != nil {
			return fmt.Errorf("listing types: %w", err)
		}

		if len(types) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No relationship types found. Run 'kin types seed'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tLOCALE")
		for _, rt := range types {
			fmt.Fprintf(w, "%d\t%s\t%s\n", rt.ID, rt.Kind, rt.Locale)
		}
		return w.Flush()
	})
}

func runTypesSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		added, err := d.Types.HandleSeed(ctx)
		if err != nil {
			return fmt.Errorf("seeding types: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d relationship types\n", added)
		return nil
	})
}
