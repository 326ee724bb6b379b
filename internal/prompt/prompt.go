// Package prompt provides the interactive terminal surface: huh forms for
// manual conflict resolution and lipgloss-rendered summaries for sync
// results, conflict reports and listings.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/danielolaszy/tether/internal/engine"
	"github.com/danielolaszy/tether/pkg/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	baseStyle   = lipgloss.NewStyle().Faint(true)
	localStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	remoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// Terminal asks the user to settle manual conflicts, one select per
// conflict. It satisfies the orchestrator's presenter contract.
type Terminal struct {
	out io.Writer

	// choose runs the form for one conflict. Tests replace it to avoid
	// driving a real TTY.
	choose func(ctx context.Context, entry engine.ReportEntry) (engine.Choice, error)
}

// NewTerminal returns a presenter writing to out, or stdout when out is nil.
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	t := &Terminal{out: out}
	t.choose = t.selectChoice
	return t
}

// ResolveConflicts walks the report's manual entries and asks for a choice
// on each. The user aborting the form cancels the whole resolution.
func (t *Terminal) ResolveConflicts(ctx context.Context, report *engine.ConflictReport) (map[engine.EditKey]engine.Choice, error) {
	manual := report.Manual()
	if len(manual) == 0 {
		return nil, nil
	}

	fmt.Fprintln(t.out, titleStyle.Render(fmt.Sprintf("%d conflict(s) in %s need a decision", len(manual), report.ProjectID)))

	choices := make(map[engine.EditKey]engine.Choice, len(manual))
	for i, entry := range manual {
		fmt.Fprintln(t.out)
		fmt.Fprintln(t.out, renderEntry(entry, i+1, len(manual)))

		choice, err := t.choose(ctx, entry)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil, fmt.Errorf("conflict resolution aborted: %w", err)
			}
			return nil, err
		}
		choices[entry.Key] = choice
	}
	return choices, nil
}

// ShowFailure prints a styled failure notice for one project.
func (t *Terminal) ShowFailure(projectID string, err error) {
	fmt.Fprintln(t.out, errorStyle.Render(fmt.Sprintf("sync failed for %s", projectID)))
	fmt.Fprintf(t.out, "  %v\n", err)
}

func (t *Terminal) selectChoice(ctx context.Context, entry engine.ReportEntry) (engine.Choice, error) {
	choice := engine.ChooseLocal
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[engine.Choice]().
			Title(entry.Key.String()).
			Description(choiceHint(entry)).
			Options(
				huh.NewOption("keep local", engine.ChooseLocal),
				huh.NewOption("take remote", engine.ChooseRemote),
			).
			Value(&choice),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return choice, nil
}

func choiceHint(entry engine.ReportEntry) string {
	if entry.SchemaChange {
		return "field type conflict: keeping local recreates the remote field"
	}
	return "both sides changed since the last sync"
}

// renderEntry lays out the three candidate states and the edits each choice
// would apply.
func renderEntry(entry engine.ReportEntry, n, total int) string {
	var b strings.Builder

	header := fmt.Sprintf("[%d/%d] %s", n, total, keyStyle.Render(entry.Key.String()))
	if entry.SchemaChange {
		header += " " + warnStyle.Render("(field type conflict)")
	}
	b.WriteString(header)
	b.WriteString("\n")

	fmt.Fprintf(&b, "  %s %s\n", baseStyle.Render("base:  "), entry.Base)
	fmt.Fprintf(&b, "  %s %s\n", localStyle.Render("local: "), entry.Local)
	fmt.Fprintf(&b, "  %s %s", remoteStyle.Render("remote:"), entry.Remote)

	if len(entry.LocalEdits) > 0 {
		b.WriteString("\n  " + localStyle.Render("keeping local applies:"))
		for _, e := range entry.LocalEdits {
			b.WriteString("\n    " + e.Describe())
		}
	}
	if len(entry.RemoteEdits) > 0 {
		b.WriteString("\n  " + remoteStyle.Render("taking remote applies:"))
		for _, e := range entry.RemoteEdits {
			b.WriteString("\n    " + e.Describe())
		}
	}
	return b.String()
}

// RenderReport lays out a conflict report for display, one line per entry,
// grouped by verdict marker.
func RenderReport(report *engine.ConflictReport) string {
	if report == nil || report.Empty() {
		return faintStyle.Render("no differences")
	}

	var b strings.Builder
	auto, manual := 0, 0
	for _, e := range report.Entries {
		if e.Verdict == engine.VerdictManual {
			manual++
		} else {
			auto++
		}
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s: %d change(s), %d conflict(s)", report.ProjectID, auto, manual)))

	for _, e := range report.Entries {
		b.WriteString("\n" + renderVerdict(e.Verdict) + " " + e.Key.String())
		for _, edit := range pickEdits(e) {
			b.WriteString("\n    " + edit.Describe())
		}
	}
	return b.String()
}

func renderVerdict(v engine.Verdict) string {
	switch v {
	case engine.VerdictApplyLocal:
		return localStyle.Render("  local")
	case engine.VerdictApplyRemote:
		return remoteStyle.Render(" remote")
	case engine.VerdictManual:
		return warnStyle.Render(" manual")
	default:
		return string(v)
	}
}

// pickEdits returns the edit list a verdict would apply; manual entries show
// both sides.
func pickEdits(e engine.ReportEntry) []engine.Edit {
	switch e.Verdict {
	case engine.VerdictApplyLocal:
		return e.LocalEdits
	case engine.VerdictApplyRemote:
		return e.RemoteEdits
	default:
		return append(append([]engine.Edit{}, e.LocalEdits...), e.RemoteEdits...)
	}
}

// RenderResult summarizes a finished sync run.
func RenderResult(res *engine.Result) string {
	var b strings.Builder

	switch {
	case res.DryRun:
		b.WriteString(titleStyle.Render(fmt.Sprintf("dry run for %s", res.ProjectID)))
	case res.Bootstrapped:
		b.WriteString(titleStyle.Render(fmt.Sprintf("mirrored %s (first sync)", res.ProjectID)))
	default:
		b.WriteString(titleStyle.Render(fmt.Sprintf("synced %s", res.ProjectID)))
	}

	if res.Report != nil && !res.Report.Empty() {
		b.WriteString("\n" + RenderReport(res.Report))
	}
	if !res.DryRun {
		fmt.Fprintf(&b, "\napplied %d local edit(s), pushed %d remote edit(s)", res.Applied, res.Pushed)
	}
	if res.Final == engine.StateFailed {
		b.WriteString("\n" + errorStyle.Render("state: failed"))
	} else {
		b.WriteString("\n" + faintStyle.Render("state: "+string(res.Final)))
	}
	return b.String()
}

// RenderSummaries lays out listing rows as a bordered table.
func RenderSummaries(items []models.Summary) string {
	if len(items) == 0 {
		return faintStyle.Render("nothing to list")
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("NAME", "ID", "DESCRIPTION", "UPDATED")
	for _, it := range items {
		updated := ""
		if !it.UpdatedAt.IsZero() {
			updated = it.UpdatedAt.Format("2006-01-02")
		}
		tbl.Row(it.Name, it.ID, truncate(it.Description, 48), updated)
	}
	return tbl.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
