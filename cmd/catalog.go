package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tobayashi-san/arch-appcenter/catalog"
)

var catalogListCategory string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and manage the tool catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tools",
	RunE:  catalogListRun,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search tools by name, description, or tag",
	Args:  cobra.MinimumNArgs(1),
	RunE:  catalogSearchRun,
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-download the catalog, bypassing the cache",
	RunE:  catalogRefreshRun,
}

var catalogResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the cached catalog document",
	RunE:  catalogResetRun,
}

func init() {
	catalogListCmd.Flags().StringVar(&catalogListCategory, "category", "", "list only this category id")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogResetCmd)
}

func catalogListRun(cmd *cobra.Command, args []string) error {
	cat, err := newStore(newLogger()).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	var tools []catalog.Tool
	if catalogListCategory != "" {
		category, ok := cat.Category(catalogListCategory)
		if !ok {
			return fmt.Errorf("unknown category %q", catalogListCategory)
		}
		tools = category.Tools
	} else {
		for _, c := range cat.Categories() {
			tools = append(tools, c.Tools...)
		}
	}
	return renderToolTable(cmd.OutOrStdout(), tools)
}

func catalogSearchRun(cmd *cobra.Command, args []string) error {
	cat, err := newStore(newLogger()).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	term := strings.Join(args, " ")
	hits := cat.Search(term)
	if len(hits) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no tools match %q\n", term)
		return nil
	}
	return renderToolTable(cmd.OutOrStdout(), hits)
}

func catalogRefreshRun(cmd *cobra.Command, args []string) error {
	cat, err := newStore(newLogger()).Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}

	total := 0
	for _, c := range cat.Categories() {
		total += len(c.Tools)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "catalog refreshed: %d categories, %d tools\n", len(cat.Categories()), total)
	return nil
}

func catalogResetRun(cmd *cobra.Command, args []string) error {
	if err := newStore(newLogger()).ResetCache(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "catalog cache removed")
	return nil
}
