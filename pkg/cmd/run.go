package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/stackboot/stackboot/pkg/bootstrap"
	"github.com/stackboot/stackboot/pkg/fetch"
	"github.com/stackboot/stackboot/pkg/prereq"
	"github.com/stackboot/stackboot/pkg/provision"
	"github.com/stackboot/stackboot/pkg/ui"
	"github.com/stackboot/stackboot/pkg/workdir"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Fetch the bundle and show the provisioning plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, bootstrap.ModePlan)
		},
	}
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Fetch the bundle, provision infrastructure, and run the configuration pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, bootstrap.ModeApply)
		},
	}
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Fetch the bundle and destroy the provisioned infrastructure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, bootstrap.ModeDestroy)
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the bundle and validate its terraform configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, bootstrap.ModeCheck)
		},
	}
}

// newRunCmd covers driving stackboot from scripts and CI, where the mode
// arrives as configuration (--mode or STACKBOOT_MODE) rather than as a
// subcommand.
func newRunCmd() *cobra.Command {
	var flagMode string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the mode named by --mode or STACKBOOT_MODE",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := flagMode
			if name == "" {
				name = os.Getenv("STACKBOOT_MODE")
			}
			mode, err := bootstrap.ParseMode(name)
			if err != nil {
				return err
			}
			return runMode(cmd, mode)
		},
	}

	runCmd.Flags().StringVar(&flagMode, "mode", "", "one of plan, apply, destroy, check")
	return runCmd
}

func runMode(cmd *cobra.Command, mode bootstrap.Mode) error {
	if (mode == bootstrap.ModeApply || mode == bootstrap.ModeDestroy) && !flagYes {
		ok, err := confirmRun(mode)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	return newOrchestrator(cmd).Run(cmd.Context(), Cfg, mode)
}

func newOrchestrator(cmd *cobra.Command) *bootstrap.Orchestrator {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	return &bootstrap.Orchestrator{
		Fetcher: fetch.NewClient(Cfg.Host),
		NewProvisioner: func(dir, varFile string) (bootstrap.ProvisioningTool, error) {
			tool, err := prereq.Terraform()
			if err != nil {
				return nil, err
			}
			tf := provision.NewTerraform(tool.Path, dir, varFile)
			tf.Stdout = stdout
			tf.Stderr = stderr
			return tf, nil
		},
		NewConfigManager: func(dir string) (bootstrap.ConfigManager, error) {
			tool, err := prereq.Ansible()
			if err != nil {
				return nil, err
			}
			cm := provision.NewAnsible(tool.Path, dir)
			cm.Stdout = stdout
			cm.Stderr = stderr
			return cm, nil
		},
		Work: workdir.New(Cfg.WorkDir),
		Log:  ui.NewLogger(stdout, flagNoColor),
	}
}

// confirmRun asks before touching real infrastructure.
func confirmRun(mode bootstrap.Mode) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Run %s for %s@%s?", mode, Cfg.Repo, Cfg.Ref)).
				Description("This will change provisioned infrastructure.").
				Value(&ok),
		),
	).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return ok, nil
}
