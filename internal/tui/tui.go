// Package tui provides a Bubble Tea browser for a channel's message set.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/tgdeck/internal/apierr"
	"github.com/fakeyudi/tgdeck/internal/dataset"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Stat boxes under the title
	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	mediaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// requestTimeout bounds fetches and exports started from the browser.
const requestTimeout = 30 * time.Second

// ── Messages ────────────

type fetchedMsg struct{ err error }

type exportedMsg struct {
	res dataset.ExportResult
	err error
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the browser.
type Model struct {
	view     *dataset.View
	search   textinput.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
	// authErr is set when a request failed because the session ended; the
	// browser quits and Run returns it.
	authErr error
}

// New creates a browser over view. The first fetch starts in Init.
func New(view *dataset.View) Model {
	ti := textinput.New()
	ti.Placeholder = "Search messages..."
	ti.Prompt = "/ "
	ti.CharLimit = 200
	return Model{view: view, search: ti}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return m.fetch() }

func (m Model) fetch() tea.Cmd {
	v := m.view
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return fetchedMsg{err: v.Fetch(ctx)}
	}
}

func (m Model) export(f dataset.Format) tea.Cmd {
	v := m.view
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := v.Export(ctx, f)
		return exportedMsg{res: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.search.Focus()
			return m, textinput.Blink
		case "n", "right", "l":
			m.view.Next()
		case "p", "left", "h":
			m.view.Prev()
		case "g", "home":
			m.view.Goto(1)
		case "G", "end":
			_, total := m.view.Page()
			m.view.Goto(total)
		case "r":
			return m.refresh(), m.fetch()
		case "e":
			if m.view.Exporting() {
				return m, nil
			}
			return m, m.export(dataset.CSV)
		case "J":
			if m.view.Exporting() {
				return m, nil
			}
			return m, m.export(dataset.JSON)
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m.refresh(), nil

	case fetchedMsg:
		if errors.Is(msg.err, dataset.ErrStale) {
			return m, nil
		}
		if apierr.Is(msg.err, apierr.KindAuth) {
			m.authErr = msg.err
			return m, tea.Quit
		}
		return m.refresh(), nil

	case exportedMsg:
		if apierr.Is(msg.err, apierr.KindAuth) {
			m.authErr = msg.err
			return m, tea.Quit
		}
		return m.refresh(), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.search.Width = max(msg.Width-4, 10)
		m.initViewport()
		return m, nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", "tab":
		m.search.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.view.Search(m.search.Value())
	return m.refresh(), cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	s := m.view.State()

	// ── Row 1: title bar ──────────────────────────────────────────────────────
	title := titleStyle.Width(m.width).Render("  tgdeck  channel " + s.ChannelID)

	// ── Row 2: stats ──────────────────────────────────────────────────────────
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		statStyle.Render(labelStyle.Render("Messages ")+fmt.Sprint(s.Stats.TotalMessages)),
		statStyle.Render(labelStyle.Render("With media ")+fmt.Sprint(s.Stats.MessagesWithMedia)),
		statStyle.Render(labelStyle.Render("Senders ")+fmt.Sprint(s.Stats.UniqueSenders)),
	)

	// ── Row 3: search ─────────────────────────────────────────────────────────
	search := m.search.View()

	// ── Row 4…N-2: page of messages ──────────────────────────────────────────
	content := m.viewport.View()

	// ── Row N-1: feedback ─────────────────────────────────────────────────────
	feedback := dimStyle.Render(caption(s))
	switch {
	case s.Loading:
		feedback = dimStyle.Render("Loading messages…")
	case s.Exporting:
		feedback = dimStyle.Render("Exporting…")
	case s.Feedback.Error != "":
		feedback = errorStyle.Render(s.Feedback.Error)
	case s.Feedback.Success != "":
		feedback = successStyle.Render(s.Feedback.Success)
	}

	// ── Row N: hint bar ───────────────────────────────────────────────────────
	hint := "  / search  n/p page  g/G first/last  e csv  J json  r refresh  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(hint)

	return lipgloss.JoinVertical(lipgloss.Left, title, stats, search, content, " "+feedback, statusBar)
}

// AuthErr returns the AuthFailure that ended the browser, if any.
func (m Model) AuthErr() error { return m.authErr }

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewport() {
	// title + stats + search + feedback + status bar = 5 fixed rows
	m.viewport = viewport.New(m.width, max(m.height-5, 1))
	m.viewport.SetContent(m.renderPage())
}

// refresh re-renders the page after the view changed.
func (m Model) refresh() Model {
	if m.ready {
		m.viewport.SetContent(m.renderPage())
		m.viewport.GotoTop()
	}
	return m
}

func (m *Model) renderPage() string {
	s := m.view.State()
	if len(s.Items) == 0 {
		if s.Loading {
			return ""
		}
		return "\n" + dimStyle.Render("  No messages found")
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("  %-19s  %-22s  %s", "Date", "Sender", "Message")) + "\n")
	textWidth := max(m.width-50, 20)
	for _, msg := range s.Items {
		ts := msg.Date
		if t, ok := msg.Time(); ok {
			ts = t.Format("2006-01-02 15:04:05")
		}
		line := fmt.Sprintf("  %s  %-22s  %s",
			timeStyle.Render(fmt.Sprintf("%-19s", ts)),
			truncate(dataset.SenderLabel(msg), 22),
			truncate(dataset.TextLabel(msg), textWidth),
		)
		if msg.HasMedia() {
			line += "  " + mediaStyle.Render("["+dataset.MediaLabel(msg)+"]")
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func caption(s dataset.State) string {
	if s.Matches == 0 {
		return "No messages"
	}
	return fmt.Sprintf("Showing %d to %d of %d messages  ·  page %d/%d", s.From, s.To, s.Matches, s.Page, s.TotalPages)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the browser and blocks until the user quits. It returns the
// AuthFailure that ended it, if any.
func Run(view *dataset.View) error {
	p := tea.NewProgram(New(view), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.authErr != nil {
		return m.authErr
	}
	return nil
}
