package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tobayashi-san/arch-appcenter/catalog"
	"github.com/tobayashi-san/arch-appcenter/engine"
	"github.com/tobayashi-san/arch-appcenter/internal/tui"
	"github.com/tobayashi-san/arch-appcenter/sysdeps"
)

// statusBadge picks the badge style for a terminal status.
func statusBadge(styles *tui.StyleSet, st engine.Status) lipgloss.Style {
	switch st {
	case engine.StatusSuccess:
		return styles.BadgeSuccess
	case engine.StatusRunning:
		return styles.BadgeRunning
	default:
		return styles.BadgeFailure
	}
}

// renderRunSummary writes the post-run summary. A nil style set selects
// plain output.
func renderRunSummary(w io.Writer, styles *tui.StyleSet, res engine.Result) {
	elapsed := res.Elapsed.Round(time.Millisecond).String()
	if styles == nil {
		fmt.Fprintf(w, "\nstatus: %s  exit: %d  elapsed: %s\n", res.Status, res.ExitCode, elapsed)
		if res.Status != engine.StatusSuccess && res.Stderr != "" {
			fmt.Fprintln(w, tailOf(res.Stderr, 5))
		}
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+statusBadge(styles, res.Status).Render(strings.ToUpper(string(res.Status)))+
		"  "+styles.SecondaryTxt.Render(res.Command))
	fmt.Fprintln(w, "  "+styles.SummaryKey.Render("Exit code")+styles.SummaryValue.Render(strconv.Itoa(res.ExitCode)))
	fmt.Fprintln(w, "  "+styles.SummaryKey.Render("Elapsed")+styles.SummaryValue.Render(elapsed))
	if res.Status != engine.StatusSuccess && res.Stderr != "" {
		fmt.Fprintln(w, "  "+styles.ErrorTxt.Render(tailOf(res.Stderr, 5)))
	}
}

// renderBatchSummary writes the per-item outcomes and the batch counts.
func renderBatchSummary(w io.Writer, styles *tui.StyleSet, job engine.BatchJob) {
	fmt.Fprintln(w)
	for _, item := range job.Items {
		elapsed := item.Result.Elapsed.Round(time.Millisecond).String()
		if styles == nil {
			mark := "ok"
			if !item.Succeeded {
				mark = string(item.Result.Status)
			}
			fmt.Fprintf(w, "%-9s %s (%s)\n", mark, item.Descriptor.Name, elapsed)
			continue
		}
		if item.Succeeded {
			fmt.Fprintln(w, "  "+styles.SuccessTxt.Render("✓")+" "+styles.PrimaryTxt.Render(item.Descriptor.Name)+
				" "+styles.DimTxt.Render(elapsed))
		} else {
			fmt.Fprintln(w, "  "+styles.ErrorTxt.Render("✗")+" "+styles.PrimaryTxt.Render(item.Descriptor.Name)+
				" "+styles.ErrorTxt.Render(string(item.Result.Status)))
		}
	}

	counts := fmt.Sprintf("%d succeeded, %d failed, %d total", job.Succeeded, job.Failed, job.Total)
	if styles == nil {
		fmt.Fprintln(w, counts)
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+styles.SummaryKey.Render("Batch")+styles.SummaryValue.Render(counts))
}

// tailOf returns the last n lines of s.
func tailOf(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// renderToolTable writes tools as an aligned table.
func renderToolTable(w io.Writer, tools []catalog.Tool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CATEGORY\tNAME\tDESCRIPTION\n")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Category, t.Name, t.Description)
	}
	return tw.Flush()
}

// renderDepsReport writes the dependency report and returns the process
// exit code: 0 everything present, 1 optional tools missing, 2 the host
// cannot run the app center at all.
func renderDepsReport(w io.Writer, rep sysdeps.Report) int {
	available := make(map[string]bool, len(rep.Available))
	for _, name := range rep.Available {
		available[name] = true
	}
	missingRequired := make(map[string]bool, len(rep.MissingRequired))
	for _, name := range rep.MissingRequired {
		missingRequired[name] = true
	}

	if rep.ArchBased {
		fmt.Fprintln(w, "Host: Arch-based distribution detected")
	} else {
		fmt.Fprintln(w, "Host: not recognizably Arch-based; pacman operations will not work")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSTATUS\tDESCRIPTION\n")
	for _, d := range sysdeps.All() {
		status := "present"
		if !available[d.Name] {
			if missingRequired[d.Name] {
				status = "missing (required)"
			} else {
				status = "missing"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, status, d.Description)
	}
	tw.Flush()

	for _, name := range rep.MissingRequired {
		fmt.Fprintf(w, "\ninstall %s with: %s\n", name, sysdeps.InstallCommand(name))
	}
	for _, name := range rep.MissingOptional {
		if name == "aur_helper" {
			fmt.Fprintf(w, "\nno AUR helper found; install one with: %s\n", sysdeps.InstallCommand(name))
		}
	}

	switch {
	case !rep.ArchBased || len(rep.MissingRequired) > 0:
		return 2
	case len(rep.MissingOptional) > 0:
		return 1
	}
	return 0
}
