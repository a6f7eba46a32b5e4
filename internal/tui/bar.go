package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/utils"
)

const (
	DefaultLabelWidth = 24
	DefaultFilledChar = "█"
	DefaultEmptyChar  = "▱"
	MinBarWidth       = 1
)

// BarData is one row of a horizontal bar chart
type BarData struct {
	Label      string
	Value      int
	Percentage float64 // 0-100, share of the chart total
	Style      lipgloss.Style
}

type HorizontalBarConfig struct {
	BarAreaWidth int
	LabelWidth   int
	FilledChar   string
	EmptyChar    string
}

func DefaultBarConfig(barAreaWidth int) HorizontalBarConfig {
	return HorizontalBarConfig{
		BarAreaWidth: barAreaWidth,
		LabelWidth:   DefaultLabelWidth,
		FilledChar:   DefaultFilledChar,
		EmptyChar:    DefaultEmptyChar,
	}
}

// CreateHorizontalBar renders "Label │████▱▱▱│ 12 (40.0%)"
func CreateHorizontalBar(data BarData, config HorizontalBarConfig) string {
	barWidth := max(MinBarWidth, int(data.Percentage*float64(config.BarAreaWidth)/100))
	emptyWidth := max(0, config.BarAreaWidth-barWidth)

	bar := strings.Repeat(config.FilledChar, barWidth) +
		strings.Repeat(config.EmptyChar, emptyWidth)

	label := utils.TruncateString(data.Label, config.LabelWidth)
	return fmt.Sprintf("%-*s │%s│ %d (%4.1f%%)",
		config.LabelWidth, label, data.Style.Render(bar), data.Value, data.Percentage)
}

func CreateHorizontalBarChart(title string, bars []BarData, config HorizontalBarConfig) string {
	var lines []string
	if title != "" {
		lines = append(lines, title, "")
	}
	for _, bar := range bars {
		lines = append(lines, CreateHorizontalBar(bar, config))
	}
	return strings.Join(lines, "\n")
}

// ContextBars builds one bar per root context, in the order contexts first
// produced findings
func ContextBars(view results.View) []BarData {
	order, counts := view.CountByContext()

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil
	}

	styles := []lipgloss.Style{utils.WarningLightStyle, utils.InfoLightStyle, utils.CriticalLightStyle, utils.GoodLightStyle}
	bars := make([]BarData, len(order))
	for i, ctx := range order {
		bars[i] = BarData{
			Label:      ctx,
			Value:      counts[ctx],
			Percentage: float64(counts[ctx]) * 100 / float64(total),
			Style:      styles[i%len(styles)],
		}
	}
	return bars
}
