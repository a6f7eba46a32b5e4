package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/refscan/internal/graph"
	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/utils"
)

// Summary describes the scan that produced a view
type Summary struct {
	Project   string
	Documents []string
	Session   string
	State     string
	Progress  float64
	Nodes     int64
	Elapsed   time.Duration
	Errors    []error
}

type Options struct {
	Color bool
}

type printer struct {
	w    io.Writer
	opts Options
	err  error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) styled(style lipgloss.Style, s string) string {
	if !p.opts.Color {
		return s
	}
	return style.Render(s)
}

func (p *printer) section(icon, title string, count int) {
	p.printf("\n%s %s (%d)\n", icon, p.styled(utils.InfoStyle.Bold(true), title), count)
	p.printf("%s\n", strings.Repeat("─", 50))
}

// Text writes the human-readable report
func Text(w io.Writer, view results.View, sum Summary, opts Options) error {
	p := &printer{w: w, opts: opts}

	title := "Missing Reference Scan"
	if sum.Project != "" {
		title += ": " + sum.Project
	}
	p.printf("🔍 %s\n", title)
	p.printf("State: %s  |  Documents: %d  |  Nodes: %d  |  Duration: %s\n",
		sum.State, len(sum.Documents), sum.Nodes, utils.FormatDuration(sum.Elapsed))
	p.printf("%s\n", strings.Repeat("═", 65))

	components, references, prefabs := view.Totals()

	if len(view.MissingComponents) > 0 {
		p.section("🧩", "NODES WITH MISSING COMPONENTS", len(view.MissingComponents))
		for _, entry := range view.MissingComponents {
			p.printf("  %s  %s\n",
				p.styled(utils.WarningStyle, utils.SanitizeString(entry.Node.String())),
				p.styled(utils.MutedStyle, plural(entry.Count, "missing component")))
		}
	}

	if len(view.MissingReferences) > 0 {
		p.section("🔗", "NODES WITH MISSING REFERENCES", len(view.MissingReferences))
		for _, entry := range view.MissingReferences {
			p.printf("  %s\n", p.styled(utils.WarningStyle, utils.SanitizeString(entry.Node.String())))
			for _, ref := range entry.Refs {
				p.printf("    %s  %s\n",
					ReferenceLabel(ref),
					p.styled(utils.MutedStyle, "["+ref.Context+"]"))
			}
		}
	}

	if len(view.MissingPrefabs) > 0 {
		p.section("📦", "MISSING PREFABS", len(view.MissingPrefabs))
		for _, node := range view.MissingPrefabs {
			p.printf("  %s\n", p.styled(utils.CriticalStyle, utils.SanitizeString(node.String())))
		}
	}

	if len(sum.Errors) > 0 {
		p.section("⚠️ ", "ERRORS", len(sum.Errors))
		for _, err := range sum.Errors {
			p.printf("  %s\n", p.styled(utils.CriticalLightStyle, err.Error()))
		}
	}

	p.printf("\n")
	if view.Empty() {
		p.printf("%s\n", p.styled(utils.GoodStyle, "✅ No missing components, references or prefabs found"))
	} else {
		p.printf("🎯 %s, %s, %s\n",
			plural(components, "missing component"),
			plural(references, "missing reference"),
			plural(prefabs, "missing prefab"))
	}
	return p.err
}

// ReferenceLabel formats a dangling field the way the results list shows it
func ReferenceLabel(ref results.Reference) string {
	return fmt.Sprintf("Component: %s, Property: %s", ref.ComponentType, NicifyName(ref.Field))
}

// FindingLine is the one-line log form of a finding
func FindingLine(f graph.Finding) string {
	switch f.Kind {
	case graph.MissingComponent:
		return fmt.Sprintf("[%s] Missing component in GO: %s", f.Context, f.Node)
	case graph.MissingReference:
		return fmt.Sprintf("[%s] Missing reference in GO: %s. Component: %s, Property: %s",
			f.Context, f.Node, f.ComponentType, NicifyName(f.Field))
	case graph.MissingPrefab:
		return fmt.Sprintf("[%s] Missing prefab for GO: %s", f.Context, f.Node)
	default:
		return fmt.Sprintf("[%s] %s: %s", f.Context, f.Kind, f.Node)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

type jsonNode struct {
	ID   graph.ID `json:"id"`
	Name string   `json:"name"`
	Path string   `json:"path,omitempty"`
}

type jsonComponent struct {
	jsonNode
	Count int `json:"count"`
}

type jsonRef struct {
	Component string `json:"component"`
	Property  string `json:"property"`
	Label     string `json:"label"`
	Context   string `json:"context"`
}

type jsonReference struct {
	jsonNode
	Refs []jsonRef `json:"refs"`
}

type jsonTotals struct {
	MissingComponents int `json:"missing_components"`
	MissingReferences int `json:"missing_references"`
	MissingPrefabs    int `json:"missing_prefabs"`
}

type jsonReport struct {
	Project           string          `json:"project,omitempty"`
	Documents         []string        `json:"documents"`
	Session           string          `json:"session,omitempty"`
	State             string          `json:"state"`
	Progress          float64         `json:"progress"`
	NodesVisited      int64           `json:"nodes_visited"`
	ElapsedMillis     int64           `json:"elapsed_ms"`
	Totals            jsonTotals      `json:"totals"`
	MissingComponents []jsonComponent `json:"missing_components"`
	MissingReferences []jsonReference `json:"missing_references"`
	MissingPrefabs    []jsonNode      `json:"missing_prefabs"`
	Errors            []string        `json:"errors"`
}

func toJSONNode(n graph.Node) jsonNode {
	return jsonNode{ID: n.ID, Name: n.Name, Path: n.Path}
}

// JSON writes the machine-readable report. Lists are never null.
func JSON(w io.Writer, view results.View, sum Summary) error {
	components, references, prefabs := view.Totals()
	out := jsonReport{
		Project:           sum.Project,
		Documents:         append(make([]string, 0, len(sum.Documents)), sum.Documents...),
		Session:           sum.Session,
		State:             sum.State,
		Progress:          sum.Progress,
		NodesVisited:      sum.Nodes,
		ElapsedMillis:     sum.Elapsed.Milliseconds(),
		Totals:            jsonTotals{components, references, prefabs},
		MissingComponents: make([]jsonComponent, 0, len(view.MissingComponents)),
		MissingReferences: make([]jsonReference, 0, len(view.MissingReferences)),
		MissingPrefabs:    make([]jsonNode, 0, len(view.MissingPrefabs)),
		Errors:            make([]string, 0, len(sum.Errors)),
	}

	for _, entry := range view.MissingComponents {
		out.MissingComponents = append(out.MissingComponents, jsonComponent{toJSONNode(entry.Node), entry.Count})
	}
	for _, entry := range view.MissingReferences {
		refs := make([]jsonRef, len(entry.Refs))
		for i, r := range entry.Refs {
			refs[i] = jsonRef{Component: r.ComponentType, Property: r.Field, Label: NicifyName(r.Field), Context: r.Context}
		}
		out.MissingReferences = append(out.MissingReferences, jsonReference{toJSONNode(entry.Node), refs})
	}
	for _, node := range view.MissingPrefabs {
		out.MissingPrefabs = append(out.MissingPrefabs, toJSONNode(node))
	}
	for _, err := range sum.Errors {
		out.Errors = append(out.Errors, err.Error())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
