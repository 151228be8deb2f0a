// Package cmd implements the appcenter CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/catalog"
	"github.com/tobayashi-san/arch-appcenter/logging"
)

var (
	verbose       bool
	plainOutput   bool
	themeOverride string
	configURL     string

	appVersion = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "appcenter",
	Short: "Arch AppCenter — curated setup and maintenance tools for Arch Linux",
	Long: "Arch AppCenter runs curated system commands from a hosted catalog:\n" +
		"updates, cleanup, mirror management, and more. Privileged commands are\n" +
		"validated before they run and prompt for your password once per session.",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "disable the TUI and print plain output")
	rootCmd.PersistentFlags().StringVar(&themeOverride, "theme", "", "TUI color theme: dark, light, or auto")
	rootCmd.PersistentFlags().StringVar(&configURL, "config-url", "", "override the catalog document URL")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(lockCmd)
}

// newLogger builds the process logger. Log entries go to stderr only with
// --verbose; otherwise they are discarded so they cannot tear the TUI.
func newLogger() logging.Logger {
	if verbose {
		return logging.NewJSONLogger(os.Stderr, true)
	}
	return logging.Nop{}
}

// newStore builds the catalog store honoring --config-url.
func newStore(log logging.Logger) *catalog.Store {
	return catalog.NewStore(catalog.StoreOptions{URL: configURL, Log: log})
}

// SetVersionInfo sets the version and commit for display.
func SetVersionInfo(version, commit string) {
	appVersion = version
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("appcenter %s (commit: %s)\n", version, commit))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
