package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/kinship/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new kin database",
		Long: `Creates a .kin directory with default configuration, creates the schema
and seeds the default relationship types. When the index is enabled the
Qdrant collection is created too. Running init again only fills in what is
missing.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		fmt.Fprintf(out, "Using existing %s\n", config.ConfigFilePath(cwd))
	} else {
		if err := config.WriteDefault(cwd); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		fmt.Fprintf(out, "Created %s\n", config.ConfigFilePath(cwd))
	}

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.Init.Handle(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Seeded %d relationship types\n", result.TypesSeeded)
		if result.CollectionCreated {
			fmt.Fprintf(out, "Qdrant collection ready: %s\n", d.Config.Qdrant.Collection)
		}
		fmt.Fprintln(out, "kin initialized successfully!")
		return nil
	})
}
