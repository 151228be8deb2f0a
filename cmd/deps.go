package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/sysdeps"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check the system dependencies",
	Long: "Deps probes the host for the external tools the app center uses.\n" +
		"The exit code reports the outcome: 0 everything present, 1 optional\n" +
		"tools missing, 2 required tools missing or not an Arch-based host.",
	Run: func(cmd *cobra.Command, args []string) {
		rep := sysdeps.NewChecker().Check()
		if code := renderDepsReport(cmd.OutOrStdout(), rep); code != 0 {
			os.Exit(code)
		}
	},
}
