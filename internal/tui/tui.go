// Package tui implements the terminal UI's entrypoint (spec.md §1: the
// rendering and input-loop internals are out of scope; only the surface
// that calls into the core through the same entry points the HTTP API uses
// is specified). It drives the store, the fetch coordinator, and the
// analysis layer from a single bubbletea program, tick-driven at the
// configured TickRate the way Dirstral-dir2mcp's bubbletea program polls
// background state.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/mealflow/mealflow/internal/analysis"
	"github.com/mealflow/mealflow/internal/apperrors"
	"github.com/mealflow/mealflow/internal/credentials"
	"github.com/mealflow/mealflow/internal/fetch"
	"github.com/mealflow/mealflow/internal/query"
	"github.com/mealflow/mealflow/internal/store"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Run starts the terminal UI and blocks until the user quits (spec.md §5:
// it runs on its own thread, calling the same core entry points the HTTP
// API uses). cred is the resolved credential (possibly zero, in which case
// fetching is disabled until §4.8's config surface is driven some other
// way — the CLI only resolves it once at startup).
func Run(handle *store.Handle, coordinator *fetch.Coordinator, cred credentials.Credential, tickRate float64, logger zerolog.Logger) error {
	m := newModel(handle, coordinator, cred, tickRate, logger)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type rowsLoadedMsg struct {
	rows []store.Transaction
	err  error
}

type tickMsg time.Time

type model struct {
	handle      *store.Handle
	coordinator *fetch.Coordinator
	cred        credentials.Credential
	tickRate    float64
	logger      zerolog.Logger

	list    list.Model
	rows    []store.Transaction
	periods analysis.PeriodCounts
	status  string
	errMsg  string
	ready   bool
}

func newModel(handle *store.Handle, coordinator *fetch.Coordinator, cred credentials.Credential, tickRate float64, logger zerolog.Logger) model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "mealflow transactions"
	l.SetShowHelp(false)

	return model{
		handle:      handle,
		coordinator: coordinator,
		cred:        cred,
		tickRate:    tickRate,
		logger:      logger,
		list:        l,
		status:      "loading...",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadRows(), m.tick())
}

func (m model) tick() tea.Cmd {
	interval := time.Duration(float64(time.Second) / m.tickRate)
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) loadRows() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rows, err := m.handle.Query(ctx, query.FilterSpec{})
		return rowsLoadedMsg{rows: rows, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.triggerFetch()
		case "f5":
			return m, m.loadRows()
		}

	case rowsLoadedMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.rows = msg.rows
		m.periods = analysis.TimePeriodBuckets(msg.rows)
		m.list.SetItems(toItems(msg.rows))
		m.errMsg = ""
		return m, nil

	case tickMsg:
		m.status = progressLine(m.coordinator.Progress())
		return m, tea.Batch(m.tick(), m.loadRows())
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// triggerFetch kicks off a background walk with its floor 90 days before
// the current time, mirroring the HTTP API's fetch trigger but driven from
// the keyboard instead of a request body.
func (m model) triggerFetch() tea.Cmd {
	return func() tea.Msg {
		if m.cred.IsZero() {
			return rowsLoadedMsg{err: apperrors.New(apperrors.CodeConfig, "no account/cookie configured")}
		}
		floor := time.Now().AddDate(0, 0, -90)
		if !m.coordinator.TryRunAsync(m.cred.Account, floor) {
			return rowsLoadedMsg{err: apperrors.New(apperrors.CodeFetchBusy, "a fetch is already running")}
		}
		return nil
	}
}

func (m model) View() string {
	if !m.ready {
		return "starting up...\n"
	}

	header := statusStyle.Render(m.status)
	if m.errMsg != "" {
		header += "  " + errorStyle.Render(m.errMsg)
	}

	summary := fmt.Sprintf("%d rows  breakfast %d  lunch %d  dinner %d  other %d",
		len(m.rows), m.periods.Breakfast, m.periods.Lunch, m.periods.Dinner, m.periods.Other)

	help := helpStyle.Render("r: fetch   f5: refresh   q: quit")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n", header, summary, m.list.View(), help)
}

func progressLine(p fetch.Progress) string {
	switch p.State {
	case fetch.StateRunning:
		return fmt.Sprintf("fetching... %d rows so far", p.FetchedCount)
	case fetch.StateFailed:
		return "last fetch failed: " + p.FailureReason
	default:
		return "idle"
	}
}

type transactionItem struct {
	t store.Transaction
}

func (i transactionItem) Title() string {
	return fmt.Sprintf("%s  %8.2f", i.t.Time.Format("2006-01-02 15:04"), i.t.Amount)
}

func (i transactionItem) Description() string { return i.t.Merchant }
func (i transactionItem) FilterValue() string  { return i.t.Merchant }

func toItems(rows []store.Transaction) []list.Item {
	items := make([]list.Item, len(rows))
	for idx, row := range rows {
		items[idx] = transactionItem{t: row}
	}
	return items
}
