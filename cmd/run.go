package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/engine"
)

var (
	runCommand  string
	runTimeout  time.Duration
	runElevated bool
)

var runCmd = &cobra.Command{
	Use:   "run [tool name]",
	Short: "Run one catalog tool or an arbitrary command",
	Long: "Run executes a single catalog tool by name, or any command passed\n" +
		"with --command. Commands are validated before they run; elevated ones\n" +
		"prompt for your password and stream their output live.",
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runCommand, "command", "c", "", "run this command instead of a catalog tool")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "kill the command after this long (default 5m)")
	runCmd.Flags().BoolVar(&runElevated, "elevated", false, "run with elevation even without a leading sudo")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	command := runCommand
	title := command
	var requires []string
	if command == "" {
		if len(args) == 0 {
			return errors.New("name a catalog tool or pass --command")
		}
		name := strings.Join(args, " ")
		cat, err := newStore(log).Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		tool, ok := cat.FindTool(name)
		if !ok {
			return fmt.Errorf("unknown tool %q, try: appcenter catalog search %s", name, name)
		}
		command = tool.Command
		title = tool.Name
		requires = tool.Requires
	}

	for _, bin := range requires {
		if _, err := exec.LookPath(bin); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s needs %s, which is not installed\n", title, bin)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	res, err := newSession(log).runSingle(ctx, cancel, engine.Request{
		Command:  command,
		Elevated: runElevated,
		Timeout:  runTimeout,
	}, title)
	if err != nil {
		return err
	}
	if res.Status != engine.StatusSuccess {
		return fmt.Errorf("%s: %s", title, res.Status)
	}
	return nil
}
