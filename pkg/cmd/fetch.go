package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download, verify, and extract the bundle without provisioning",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newOrchestrator(cmd).FetchOnly(cmd.Context(), Cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.RootDir)
			return nil
		},
	}
}
