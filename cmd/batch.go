package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/catalog"
	"github.com/tobayashi-san/arch-appcenter/engine"
)

var (
	batchTools   []string
	batchPreauth bool
	batchTimeout time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <category>",
	Short: "Run every tool of a catalog category in sequence",
	Long: "Batch executes the tools of one catalog category strictly in\n" +
		"order. A failing tool is recorded and the batch continues. Use\n" +
		"--tools to run a subset and --preauth to validate your password\n" +
		"once before the first tool starts.",
	Args: cobra.ExactArgs(1),
	RunE: batchRun,
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchTools, "tools", nil, "run only these tools of the category")
	batchCmd.Flags().BoolVar(&batchPreauth, "preauth", false, "validate the password before the first tool starts")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "per-tool timeout (default 5m)")
}

func batchRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cat, err := newStore(log).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	category, ok := cat.Category(args[0])
	if !ok {
		var ids []string
		for _, c := range cat.Categories() {
			ids = append(ids, c.ID)
		}
		return fmt.Errorf("unknown category %q, available: %s", args[0], strings.Join(ids, ", "))
	}

	descriptors, err := selectDescriptors(category, batchTools)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("category %q has no tools", category.ID)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sess := newSession(log)
	var preauth func() error
	if batchPreauth {
		preauth = func() error { return sess.broker.Preauthenticate(uuid.NewString()) }
	}

	job, err := sess.runBatch(ctx, cancel, descriptors, category.Name, preauth)
	if err != nil {
		return err
	}
	if job.Failed > 0 {
		return fmt.Errorf("%d of %d tools failed", job.Failed, job.Total)
	}
	return nil
}

// selectDescriptors maps category tools to batch descriptors, reduced to
// the named subset when one is given. Naming a tool the category does not
// have is an error rather than a silent skip.
func selectDescriptors(category catalog.Category, names []string) ([]engine.Descriptor, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var descriptors []engine.Descriptor
	matched := make(map[string]bool, len(names))
	for _, t := range category.Tools {
		key := strings.ToLower(t.Name)
		if len(wanted) > 0 && !wanted[key] {
			continue
		}
		matched[key] = true
		descriptors = append(descriptors, engine.Descriptor{
			Name:     t.Name,
			Command:  t.Command,
			Category: t.Category,
		})
	}

	for key := range wanted {
		if !matched[key] {
			return nil, fmt.Errorf("category %q has no tool named %q", category.ID, key)
		}
	}
	return descriptors, nil
}
