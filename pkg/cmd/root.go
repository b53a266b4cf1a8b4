package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/stackboot/stackboot/pkg/config"
	"github.com/stackboot/stackboot/pkg/provision"
)

var (
	flagConfig  string
	flagRepo    string
	flagRef     string
	flagEnv     string
	flagWorkdir string
	flagYes     bool
	flagNoColor bool

	// Cfg holds the resolved run configuration, available to all
	// subcommands after PersistentPreRunE completes.
	Cfg *config.Config
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stackboot",
		Short: "Infrastructure bootstrap runner",
		Long: `stackboot downloads a tagged release of an infrastructure repository,
verifies and extracts it, and runs terraform (and on apply, ansible)
from the extracted tree.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Overrides{
				ConfigFile:  flagConfig,
				Repo:        flagRepo,
				Ref:         flagRef,
				Environment: flagEnv,
				WorkDir:     flagWorkdir,
			})
			if err != nil {
				return err
			}
			Cfg = cfg
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the stackboot.toml manifest")
	root.PersistentFlags().StringVar(&flagRepo, "repo", "", "infrastructure repository (owner/name)")
	root.PersistentFlags().StringVar(&flagRef, "ref", "", "tag or commit SHA to fetch")
	root.PersistentFlags().StringVarP(&flagEnv, "env", "e", "", "environment variant from the manifest")
	root.PersistentFlags().StringVar(&flagWorkdir, "workdir", "", "work directory for the archive and extracted tree")
	root.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
	root.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	root.AddCommand(newPlanCmd())
	root.AddCommand(newApplyCmd())
	root.AddCommand(newDestroyCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newInitCmd())

	return root
}

// Execute runs the CLI. When the provisioning or configuration tool
// failed, its exit code becomes the process exit status; every other
// failure exits 1.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var toolErr *provision.ToolError
		if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
			os.Exit(toolErr.ExitCode)
		}
		os.Exit(1)
	}
}
