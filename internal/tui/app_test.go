package tui

import (
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/refscan/internal/graph"
	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/internal/scan"
	"github.com/mabhi256/refscan/internal/scene"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

// chain is an accessor for a straight line of n nodes; every node has one
// absent component and one dangling reference.
type chain struct {
	n int
}

func (c chain) Children(node graph.Node) ([]graph.Node, error) {
	if int(node.ID) >= c.n {
		return nil, nil
	}
	next := node.ID + 1
	return []graph.Node{{ID: next, Name: fmt.Sprintf("n%d", next)}}, nil
}

func (c chain) Components(graph.Node) ([]graph.ComponentSlot, error) {
	return []graph.ComponentSlot{
		{ID: 1, TypeName: "Gone"},
		{ID: 2, TypeName: "Link", Present: true},
	}, nil
}

func (c chain) ReferenceFields(graph.Node, graph.ComponentSlot) ([]graph.Field, error) {
	return []graph.Field{{Name: "m_Target", Kind: graph.KindObjectReference, State: graph.Dangling}}, nil
}

func newTestModel(t *testing.T, n, steps int) (*Model, *int) {
	t.Helper()
	agg := results.NewAggregator()
	reloads := 0

	m := NewModel(Options{
		Title:   "test",
		Engine:  scan.NewEngine(chain{n: n}, agg),
		Results: agg,
		Roots: func() ([]graph.RootSpec, error) {
			return []graph.RootSpec{{Root: graph.Node{ID: 1, Name: "n1"}, Weight: 1, Context: "main", Recurse: true}}, nil
		},
		Reload:       func() error { reloads++; return nil },
		StepsPerTick: steps,
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, &reloads
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func tickUntilIdle(t *testing.T, m *Model) int {
	t.Helper()
	for i := range 1000 {
		_, cmd := m.Update(TickMsg{})
		if cmd == nil {
			return i + 1
		}
	}
	t.Fatal("model kept ticking")
	return 0
}

func TestInitStartsScanAndTicks(t *testing.T) {
	m, _ := newTestModel(t, 5, 4)

	cmd := m.Init()
	require.NotNil(t, cmd, "first scan schedules a tick")
	require.NotNil(t, m.Session())
	assert.Equal(t, scan.InProgress, m.Session().State())

	assert.Nil(t, m.Init(), "a second scan reuses the running tick loop")
}

func TestTicksDriveScanToCompletion(t *testing.T) {
	m, _ := newTestModel(t, 10, 3)
	m.Init()

	ticks := tickUntilIdle(t, m)
	assert.Greater(t, ticks, 1, "work is spread over several ticks")

	assert.Equal(t, scan.Completed, m.last.State)
	assert.Equal(t, 1.0, m.last.Progress)
	components, references, _ := m.view.Totals()
	assert.Equal(t, 10, components)
	assert.Equal(t, 10, references)

	out := m.View()
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "Findings by context")
}

func TestCancelKey(t *testing.T) {
	m, _ := newTestModel(t, 50, 2)
	m.Init()
	m.Update(TickMsg{})

	m.Update(keyMsg("c"))
	tickUntilIdle(t, m)

	assert.Equal(t, scan.Cancelled, m.Session().State())
	assert.Less(t, m.last.Progress, 1.0)
	assert.Contains(t, m.View(), "Cancelled")
}

func TestRescanKeySupersedesRunningScan(t *testing.T) {
	m, _ := newTestModel(t, 50, 2)
	m.Init()
	m.Update(TickMsg{})
	first := m.Session()

	_, cmd := m.Update(keyMsg("r"))
	assert.Nil(t, cmd, "tick loop is already running")
	assert.Equal(t, scan.Cancelled, first.State())
	assert.NotSame(t, first, m.Session())

	tickUntilIdle(t, m)
	assert.Equal(t, scan.Completed, m.Session().State())

	_, cmd = m.Update(keyMsg("r"))
	assert.NotNil(t, cmd, "rescan after completion restarts ticking")
}

func TestFilesChangedReloadsAndRescans(t *testing.T) {
	m, reloads := newTestModel(t, 3, 100)
	m.Init()
	tickUntilIdle(t, m)
	first := m.Session()

	_, cmd := m.Update(FilesChangedMsg{{Path: "a.scene.yaml", Op: scene.OpWrite}})
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, *reloads)
	assert.NotSame(t, first, m.Session())
}

func TestReloadFailureKeepsLastResults(t *testing.T) {
	m, _ := newTestModel(t, 3, 100)
	m.opts.Reload = func() error { return errors.New("bad yaml") }
	m.Init()
	tickUntilIdle(t, m)
	first := m.Session()

	_, cmd := m.Update(FilesChangedMsg{})
	assert.Nil(t, cmd)
	assert.Same(t, first, m.Session())
	assert.ErrorContains(t, m.err, "bad yaml")

	m.Update(keyMsg("l"))
	m.Update(keyMsg("l"))
	m.Update(keyMsg("l"))
	assert.Equal(t, ErrorsTab, m.currentTab)
	assert.Contains(t, m.View(), "reload failed: bad yaml")
}

func TestRootsErrorIsShown(t *testing.T) {
	m, _ := newTestModel(t, 3, 1)
	m.opts.Roots = func() ([]graph.RootSpec, error) { return nil, errors.New("no scenes") }

	assert.Nil(t, m.Init())
	assert.Nil(t, m.Session())
	assert.Contains(t, m.View(), "no scenes")
}

func TestTabCycling(t *testing.T) {
	m, _ := newTestModel(t, 3, 100)
	m.Init()
	tickUntilIdle(t, m)

	m.Update(keyMsg("l"))
	assert.Equal(t, ComponentsTab, m.currentTab)
	assert.Contains(t, m.View(), "n3  1 missing")

	m.Update(keyMsg("l"))
	assert.Equal(t, ReferencesTab, m.currentTab)
	assert.Contains(t, m.View(), "Component: Link, Property: Target  [main]")

	m.Update(keyMsg("l"))
	m.Update(keyMsg("l"))
	assert.Equal(t, ProgressTab, m.currentTab, "tabs wrap around")

	m.Update(keyMsg("h"))
	assert.Equal(t, ErrorsTab, m.currentTab)
	assert.Contains(t, m.View(), "No errors")
}

func TestScrollIsClamped(t *testing.T) {
	m, _ := newTestModel(t, 100, 1000)
	m.Init()
	tickUntilIdle(t, m)
	m.Update(keyMsg("l"))

	for range 500 {
		m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	}
	out := m.View()
	assert.Contains(t, out, "n100")
	assert.NotContains(t, out, "n1 ")

	m.Update(keyMsg("k"))
	assert.Less(t, m.scrollPositions[ComponentsTab], 100)
}

func TestQuitCancelsScan(t *testing.T) {
	m, _ := newTestModel(t, 50, 1)
	m.Init()

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Session().CancelRequested())
}

func TestContextBars(t *testing.T) {
	agg := results.NewAggregator()
	agg.RecordMissingComponent(graph.Node{ID: 1}, "a")
	agg.RecordMissingComponent(graph.Node{ID: 2}, "b")
	agg.RecordMissingPrefab(graph.Node{ID: 3}, "a")
	agg.RecordMissingReference(graph.Node{ID: 4}, "C", "f", "a")

	bars := ContextBars(agg.Snapshot())
	require.Len(t, bars, 2)
	assert.Equal(t, "a", bars[0].Label)
	assert.Equal(t, 3, bars[0].Value)
	assert.InDelta(t, 75.0, bars[0].Percentage, 1e-9)

	assert.Nil(t, ContextBars(results.View{}))
}

func TestLatestFindings(t *testing.T) {
	m, _ := newTestModel(t, 4, 100)
	m.Init()
	tickUntilIdle(t, m)

	recent := latestFindings(m.view, 3)
	require.Len(t, recent, 3)
	assert.Equal(t, "[main] Missing reference in GO: n4. Component: Link, Property: Target", recent[2])

	assert.Empty(t, latestFindings(results.View{}, 5))
}
