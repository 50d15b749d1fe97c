package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/domain/services"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search relationships by meaning",
		Long: `Finds relationships whose sentence ("Alice mother Bob") is closest to the
query. Requires index.enabled in the config.

Examples:
  kin search "who is Bob's mother"
  kin search sisters --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withDeps(ctx, func(d *Deps) error {
				results, err := d.Relationships.HandleSearch(ctx, args[0], limit)
				if err != nil {
					return fmt.Errorf("searching: %w", err)
				}

				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching relationships found.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SCORE\tID\tSUBJECT\tKIND\tOBJECT")
				for i := range results {
					r := &results[i]
					fmt.Fprintf(w, "%.3f\t%d\t%s\t%s\t%s\n",
						r.Score,
						r.ID,
						personName(r.Subject, r.SubjectID),
						r.Kind(),
						personName(r.Object, r.ObjectID),
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", services.DefaultSearchLimit, "Maximum number of results")

	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the semantic index from stored relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withDeps(ctx, func(d *Deps) error {
				n, err := d.Relationships.HandleReindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d relationships\n", n)
				return nil
			})
		},
	}
}
