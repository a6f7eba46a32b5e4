package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mabhi256/refscan/internal/report"
	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/internal/scan"
	"github.com/mabhi256/refscan/utils"
)

func (m *Model) renderProgress() []string {
	var lines []string

	if m.err != nil {
		lines = append(lines, utils.CriticalStyle.Render("Error: "+m.err.Error()), "")
	}
	if m.session == nil {
		return append(lines, utils.MutedStyle.Render("No scan running. Press r to start one."))
	}

	lines = append(lines,
		"",
		"  "+m.progress.ViewAs(m.last.Progress),
		"",
		"  "+m.renderState(),
		"  "+utils.MutedStyle.Render(m.last.Status),
		"",
	)

	elapsed := m.session.Elapsed().Round(time.Millisecond)
	components, references, prefabs := m.view.Totals()
	lines = append(lines,
		"  "+utils.FormatKeyValue("Roots", fmt.Sprint(len(m.session.Roots())), 18),
		"  "+utils.FormatKeyValue("Nodes visited", fmt.Sprint(m.session.NodesVisited()), 18),
		"  "+utils.FormatKeyValue("Elapsed", utils.FormatDuration(elapsed), 18),
		"  "+utils.FormatKeyValue("Missing components", fmt.Sprint(components), 18),
		"  "+utils.FormatKeyValue("Missing references", fmt.Sprint(references), 18),
		"  "+utils.FormatKeyValue("Missing prefabs", fmt.Sprint(prefabs), 18),
	)

	if bars := ContextBars(m.view); len(bars) > 0 {
		width := max(10, m.width-DefaultLabelWidth-20)
		chart := CreateHorizontalBarChart("  Findings by context", bars, DefaultBarConfig(width))
		lines = append(lines, "")
		lines = append(lines, strings.Split(chart, "\n")...)
	}

	if recent := latestFindings(m.view, 5); len(recent) > 0 {
		lines = append(lines, "", "  "+utils.InfoStyle.Bold(true).Render("Latest findings"))
		for _, line := range recent {
			lines = append(lines, "  "+utils.MutedStyle.Render(utils.TruncateString(line, max(20, m.width-4))))
		}
	}
	return lines
}

// latestFindings returns the last n findings, newest last
func latestFindings(view results.View, n int) []string {
	start := max(0, len(view.Findings)-n)
	out := make([]string, 0, len(view.Findings)-start)
	for _, f := range view.Findings[start:] {
		out = append(out, utils.SanitizeString(report.FindingLine(f)))
	}
	return out
}

func (m *Model) renderState() string {
	percent := fmt.Sprintf("%5.1f%%", m.last.Progress*100)
	switch m.last.State {
	case scan.Completed:
		return utils.GoodStyle.Render("✅ Completed " + percent)
	case scan.Cancelled:
		return utils.WarningStyle.Render("⏹  Cancelled " + percent)
	default:
		return utils.InfoStyle.Render("⏳ Scanning " + percent)
	}
}

func renderComponents(view results.View) []string {
	if len(view.MissingComponents) == 0 && len(view.MissingPrefabs) == 0 {
		return []string{"", utils.GoodStyle.Render("  No missing components")}
	}

	var lines []string
	for _, entry := range view.MissingComponents {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			utils.WarningStyle.Render(utils.SanitizeString(entry.Node.String())),
			utils.MutedStyle.Render(fmt.Sprintf("%d missing", entry.Count))))
	}

	if len(view.MissingPrefabs) > 0 {
		lines = append(lines, "", utils.InfoStyle.Render("  Missing prefabs"))
		for _, node := range view.MissingPrefabs {
			lines = append(lines, "  "+utils.CriticalStyle.Render(utils.SanitizeString(node.String())))
		}
	}
	return lines
}

func renderReferences(view results.View) []string {
	if len(view.MissingReferences) == 0 {
		return []string{"", utils.GoodStyle.Render("  No missing references")}
	}

	var lines []string
	for _, entry := range view.MissingReferences {
		lines = append(lines, "  "+utils.WarningStyle.Render(utils.SanitizeString(entry.Node.String())))
		for _, ref := range entry.Refs {
			lines = append(lines, fmt.Sprintf("    %s  %s",
				report.ReferenceLabel(ref),
				utils.MutedStyle.Render("["+ref.Context+"]")))
		}
	}
	return lines
}

func (m *Model) renderErrors() []string {
	var errs []error
	if m.err != nil {
		errs = append(errs, m.err)
	}
	if m.session != nil {
		errs = append(errs, m.session.Errors()...)
	}
	if len(errs) == 0 {
		return []string{"", utils.GoodStyle.Render("  No errors")}
	}

	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, "  "+utils.CriticalLightStyle.Render(err.Error()))
	}
	return lines
}
