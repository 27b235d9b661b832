// Package tui provides the live status dashboard shown by
// `conductor status --watch`: a claim table, heartbeat liveness, a budget
// gauge, and pending decisions.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/heartbeat"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/pkg/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	staleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const refreshInterval = 2 * time.Second

// tickMsg triggers a refresh from disk.
type tickMsg time.Time

// snapshotMsg carries a freshly read state document.
type snapshotMsg struct {
	doc       *models.StateDocument
	pending   []*models.Decision
	dailyCost float64
	err       error
}

// Model is the bubbletea model backing `status --watch`.
type Model struct {
	store     *state.Store
	beacons   *heartbeat.Registry
	decisions *decision.Queue
	ledger    *budget.Ledger
	freshness time.Duration
	dailyCap  float64
	gauge     progress.Model

	doc       *models.StateDocument
	pending   []*models.Decision
	dailyCost float64
	err       error
	quitting  bool
}

// New builds a status Model reading from the given collaborators.
// dailyCap is the configured daily spend cap used to scale the budget
// gauge; a non-positive value renders the gauge as always-empty.
func New(store *state.Store, beacons *heartbeat.Registry, decisions *decision.Queue, ledger *budget.Ledger, dailyCap float64) *Model {
	return &Model{
		store: store, beacons: beacons, decisions: decisions, ledger: ledger,
		freshness: heartbeat.DefaultFreshness, dailyCap: dailyCap,
		gauge: progress.New(progress.WithDefaultGradient()),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		doc, err := m.store.Snapshot()
		if err != nil {
			return snapshotMsg{err: err}
		}
		pending, _ := m.decisions.Pending()
		var cost float64
		if m.ledger != nil {
			cost, _ = m.ledger.DailyTotal()
		}
		return snapshotMsg{doc: doc, pending: pending, dailyCost: cost}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())
	case snapshotMsg:
		m.doc, m.pending, m.dailyCost, m.err = msg.doc, msg.pending, msg.dailyCost, msg.err
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("conductor status") + dimStyle.Render("  (q to quit)") + "\n\n")

	if m.err != nil {
		b.WriteString(staleStyle.Render(fmt.Sprintf("error reading state: %v\n", m.err)))
		return b.String()
	}
	if m.doc == nil {
		b.WriteString(dimStyle.Render("loading...\n"))
		return b.String()
	}

	b.WriteString(m.renderFeatures())
	b.WriteString("\n")
	b.WriteString(m.renderDecisions())
	b.WriteString("\n")
	b.WriteString(m.renderBudget())
	return b.String()
}

func (m *Model) renderBudget() string {
	var frac float64
	if m.dailyCap > 0 {
		frac = m.dailyCost / m.dailyCap
		if frac > 1 {
			frac = 1
		}
	}
	return fmt.Sprintf("budget  $%.4f / $%.2f  %s\n", m.dailyCost, m.dailyCap, m.gauge.ViewAs(frac))
}

func (m *Model) renderFeatures() string {
	ids := make([]string, 0, len(m.doc.Features))
	for id := range m.doc.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-12s %-10s %-10s\n", "FEATURE", "STATUS", "OWNER", "HEARTBEAT")
	for _, id := range ids {
		s := m.doc.Features[id]
		status := string(s.Status)
		styled := status
		switch s.Status {
		case models.StatusCompleted:
			styled = okStyle.Render(status)
		case models.StatusBlocked:
			styled = blockedStyle.Render(status)
		}

		heartbeatCol := "-"
		if s.ClaimedBy != "" {
			if m.beacons.IsStale(s.ClaimedBy, m.freshness) {
				heartbeatCol = staleStyle.Render("stale")
			} else {
				heartbeatCol = okStyle.Render("alive")
			}
		}
		fmt.Fprintf(&b, "%-16s %-12s %-10s %-10s\n", id, styled, s.ClaimedBy, heartbeatCol)
	}
	return b.String()
}

func (m *Model) renderDecisions() string {
	if len(m.pending) == 0 {
		return dimStyle.Render("no pending decisions\n")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("pending decisions") + "\n")
	for _, d := range m.pending {
		fmt.Fprintf(&b, "  %s: %s %v\n", d.ID, d.Question, d.Options)
	}
	return b.String()
}
