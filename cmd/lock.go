package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/credential"
	"github.com/tobayashi-san/arch-appcenter/engine"
	"github.com/tobayashi-san/arch-appcenter/internal/tui"
	"github.com/tobayashi-san/arch-appcenter/pacman"
)

var lockClearYes bool

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect the pacman database lock",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pacman database lock state",
	RunE:  lockStatusRun,
}

var lockClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a stale pacman database lock",
	Long: "Clear removes " + pacman.LockFile + " when no package manager is\n" +
		"running. The removal is always refused while pacman is active and\n" +
		"never happens without --yes.",
	RunE: lockClearRun,
}

func init() {
	lockClearCmd.Flags().BoolVar(&lockClearYes, "yes", false, "confirm the removal")

	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockClearCmd)
}

func lockStatusRun(cmd *cobra.Command, args []string) error {
	st := pacman.NewProbe().Check()
	out := cmd.OutOrStdout()
	switch {
	case !st.Present:
		fmt.Fprintln(out, "no lock: the package database is free")
	case st.OwnerActive:
		fmt.Fprintln(out, "locked: pacman is running, wait for it to finish")
	default:
		fmt.Fprintf(out, "stale lock: %s exists but no pacman process is running\n", pacman.LockFile)
		fmt.Fprintln(out, "remove it with: appcenter lock clear --yes")
	}
	return nil
}

// lockClearRun removes the lock through the execution engine so the
// command is validated and elevated like any other.
func lockClearRun(cmd *cobra.Command, args []string) error {
	st := pacman.NewProbe().Check()
	if !st.Present {
		fmt.Fprintln(cmd.OutOrStdout(), "no lock to remove")
		return nil
	}
	if st.OwnerActive {
		return errors.New("pacman is running, refusing to remove an active lock")
	}
	if !lockClearYes {
		return errors.New("removing the lock file needs explicit confirmation, pass --yes")
	}

	log := newLogger()
	surface := tui.NewPlainSurface(os.Stdout, os.Stderr)
	broker := credential.NewBroker(credential.Options{Sink: surface, Log: log})
	surface.Creds = broker
	coord := engine.NewCoordinator(engine.Options{Creds: broker, Observer: surface, Log: log})

	res := coord.Execute(cmd.Context(), engine.Request{Command: pacman.RemoveCommand()})
	if res.Status != engine.StatusSuccess {
		return fmt.Errorf("lock removal failed: %s", res.Status)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "lock removed")
	return nil
}
