package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"go.uber.org/zap"

	"github.com/mabhi256/refscan/internal/graph"
	"github.com/mabhi256/refscan/internal/results"
	"github.com/mabhi256/refscan/internal/scan"
	"github.com/mabhi256/refscan/internal/scene"
)

type TabType int

const (
	ProgressTab TabType = iota
	ComponentsTab
	ReferencesTab
	ErrorsTab
)

var (
	tabIcons = []string{"⏳", "🧩", "🔗", "⚠️"}
	tabNames = []string{"Progress", "Components", "References", "Errors"}
)

// TickMsg drives the scan forward
type TickMsg time.Time

// FilesChangedMsg carries a settled batch of project file changes
type FilesChangedMsg []scene.Change

type Options struct {
	Title   string
	Engine  *scan.Engine
	Results *results.Aggregator

	// Roots is called for every scan so that a reload can change them
	Roots func() ([]graph.RootSpec, error)
	// Reload runs before a rescan triggered by file changes. Optional.
	Reload func() error

	StepsPerTick int
	TickInterval time.Duration
	Logger       *zap.Logger
}

type Model struct {
	opts   Options
	logger *zap.Logger

	session *scan.Session
	last    scan.StepResult
	view    results.View
	ticking bool
	err     error

	// UI state
	currentTab      TabType
	width           int
	height          int
	scrollPositions map[TabType]int

	keys     KeyMap
	help     help.Model
	progress progress.Model
}

type KeyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Cancel   key.Binding
	Rescan   key.Binding
	Help     key.Binding
	Quit     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func k(keys []string, help, desc string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(help, desc),
	)
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:     k([]string{"left", "h", "shift+tab"}, "←/h", "prev tab"),
		Right:    k([]string{"right", "l", "tab"}, "→/l", "next tab"),
		Up:       k([]string{"up", "k"}, "↑/k", "up"),
		Down:     k([]string{"down", "j"}, "↓/j", "down"),
		PageUp:   k([]string{"pgup"}, "pgup", "page up"),
		PageDown: k([]string{"pgdown"}, "pgdn", "page down"),
		Cancel:   k([]string{"c", "esc"}, "c", "cancel scan"),
		Rescan:   k([]string{"r"}, "r", "rescan"),
		Help:     k([]string{"?"}, "?", "more keys"),
		Quit:     k([]string{"q", "ctrl+c"}, "q", "quit"),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Right, k.Cancel, k.Rescan, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Left, k.Right},
		{k.Cancel, k.Rescan, k.Help, k.Quit},
	}
}
