package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stackboot/stackboot/pkg/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a starter stackboot.toml manifest",
		RunE:  runInit,
		// init does not need a resolvable run configuration; skip the
		// root PersistentPreRunE.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	if err := config.InitManifest(wd, config.InferName(wd)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", config.ManifestFileName)

	// The work directory holds downloaded archives and extracted trees;
	// it has no business in version control.
	added, err := config.EnsureGitignore(wd, []string{config.DefaultWorkDir + "/"})
	if err != nil {
		return err
	}
	for _, entry := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to .gitignore\n", entry)
	}

	return nil
}
