package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var (
		short   bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case short:
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return nil
			case jsonOut:
				return writeJSON(cmd, version.GetInfo())
			default:
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print the bare version number")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print version details as JSON")

	return cmd
}
