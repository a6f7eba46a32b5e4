package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/mabhi256/refscan/internal/scan"
	"github.com/mabhi256/refscan/internal/scene"
	"github.com/mabhi256/refscan/utils"
)

const PageSize = 10

func NewModel(opts Options) *Model {
	if opts.StepsPerTick <= 0 {
		opts.StepsPerTick = 64
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 16 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Model{
		opts:            opts,
		logger:          opts.Logger.Named("tui"),
		currentTab:      ProgressTab,
		scrollPositions: make(map[TabType]int),
		keys:            DefaultKeyMap(),
		help:            help.New(),
		progress:        progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the first scan
func (m *Model) Init() tea.Cmd {
	return m.rescan()
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Session returns the most recent scan session, finished or not
func (m *Model) Session() *scan.Session {
	return m.session
}

func (m *Model) rescan() tea.Cmd {
	roots, err := m.opts.Roots()
	if err != nil {
		m.err = err
		return nil
	}

	s, err := m.opts.Engine.BeginScan(roots)
	if err != nil {
		m.err = err
		return nil
	}

	m.err = nil
	m.session = s
	m.last = scan.StepResult{State: scan.InProgress}
	m.view = m.opts.Results.Snapshot()
	clear(m.scrollPositions)

	if m.ticking {
		return nil
	}
	m.ticking = true
	return m.scheduleTick()
}

// step advances the session up to StepsPerTick times
func (m *Model) step() {
	if m.session == nil || m.session.Done() {
		return
	}
	for range m.opts.StepsPerTick {
		m.last = m.opts.Engine.Advance(m.session)
		if m.last.Done() {
			break
		}
	}
	if m.opts.Results.Version() != m.view.Version {
		m.view = m.opts.Results.Snapshot()
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(10, msg.Width-12)

	case TickMsg:
		m.step()
		if m.session == nil || m.session.Done() {
			m.view = m.opts.Results.Snapshot()
			m.ticking = false
			return m, nil
		}
		return m, m.scheduleTick()

	case FilesChangedMsg:
		m.logger.Info("Project changed, rescanning", zap.Int("files", len(msg)))
		if m.opts.Reload != nil {
			if err := m.opts.Reload(); err != nil {
				m.err = fmt.Errorf("reload failed: %w", err)
				return m, nil
			}
		}
		return m, m.rescan()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.session != nil {
				m.opts.Engine.Cancel(m.session)
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Cancel):
			if m.session != nil && !m.session.Done() {
				m.opts.Engine.Cancel(m.session)
			}

		case key.Matches(msg, m.keys.Rescan):
			return m, m.rescan()

		case key.Matches(msg, m.keys.Right):
			m.currentTab = utils.GetNextEnum(m.currentTab, ErrorsTab)
		case key.Matches(msg, m.keys.Left):
			m.currentTab = utils.GetPrevEnum(m.currentTab, ErrorsTab)

		case key.Matches(msg, m.keys.Up):
			m.scroll(-1)
		case key.Matches(msg, m.keys.Down):
			m.scroll(1)
		case key.Matches(msg, m.keys.PageUp):
			m.scroll(-PageSize)
		case key.Matches(msg, m.keys.PageDown):
			m.scroll(PageSize)

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	return m, nil
}

func (m *Model) scroll(lines int) {
	m.scrollPositions[m.currentTab] = max(0, m.scrollPositions[m.currentTab]+lines)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	footer := m.help.View(m.keys)
	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer)-1)

	var lines []string
	switch m.currentTab {
	case ProgressTab:
		lines = m.renderProgress()
	case ComponentsTab:
		lines = renderComponents(m.view)
	case ReferencesTab:
		lines = renderReferences(m.view)
	case ErrorsTab:
		lines = m.renderErrors()
	}

	offset := min(m.scrollPositions[m.currentTab], max(0, len(lines)-bodyHeight))
	m.scrollPositions[m.currentTab] = offset
	end := min(len(lines), offset+bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		strings.Join(lines[offset:end], "\n"),
		"",
		footer,
	)
}

func (m *Model) renderHeader() string {
	components, references, prefabs := m.view.Totals()
	counts := []int{-1, components + prefabs, references, 0}
	if m.session != nil {
		counts[ErrorsTab] = len(m.session.Errors())
	}

	var tabs []string
	for i, name := range tabNames {
		style := utils.TabInactiveStyle
		indicator := " "
		if TabType(i) == m.currentTab {
			style = utils.TabActiveStyle
			indicator = "●"
		}

		text := fmt.Sprintf("%s %s %s", indicator, tabIcons[i], name)
		if counts[i] >= 0 {
			text += fmt.Sprintf(" (%d)", counts[i])
		}
		tabs = append(tabs, style.Render(text))
	}

	title := utils.TitleStyle.Render("🔍 " + m.opts.Title)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(tabs, "  "),
		strings.Repeat("─", m.width),
	)
}

// Run starts the program. When watchDir is set, settled file changes under
// it trigger a reload and rescan.
func Run(m *Model, watchDir string, debounce time.Duration) error {
	program := tea.NewProgram(m, tea.WithAltScreen())

	if watchDir != "" {
		watcher, err := scene.NewWatcher(watchDir, debounce, func(changes []scene.Change) {
			program.Send(FilesChangedMsg(changes))
		}, m.opts.Logger)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch %s: %w", watchDir, err)
		}
		defer watcher.Stop()
	}

	_, err := program.Run()
	return err
}
