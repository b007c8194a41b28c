// Package ui renders the collapsible daily log view in the terminal.
package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/itayakad/juno-master/internal/aggregate"
	"github.com/itayakad/juno-master/internal/views"
)

// Day is one date group prepared for display.
type Day struct {
	Date    string
	Summary string
	Lines   []string
	Undated int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	lineStyle     = lipgloss.NewStyle().PaddingLeft(4)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Model owns Bubble Tea state for the daily view.
type Model struct {
	ctx    context.Context
	store  views.Store
	userID string
	kind   string
	title  string

	days     []Day
	state    aggregate.ExpansionState
	selected int

	statusLine string
	errorLine  string
}

type toggledMsg struct {
	date  string
	state aggregate.ExpansionState
	err   error
}

// NewModel seeds the view with prepared days and the stored expansion state.
func NewModel(ctx context.Context, store views.Store, userID, kind, title string, days []Day, state aggregate.ExpansionState) Model {
	if state == nil {
		state = aggregate.ExpansionState{}
	}
	return Model{
		ctx:    ctx,
		store:  store,
		userID: userID,
		kind:   kind,
		title:  title,
		days:   days,
		state:  state,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case toggledMsg:
		if msg.err != nil {
			m.errorLine = fmt.Sprintf("toggle %s: %v", msg.date, msg.err)
			return m, nil
		}
		m.state = msg.state
		m.errorLine = ""
		if m.state.Expanded(msg.date) {
			m.statusLine = "Expanded " + msg.date
		} else {
			m.statusLine = "Collapsed " + msg.date
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "down", "j":
		if m.selected < len(m.days)-1 {
			m.selected++
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "enter", " ", "x":
		if len(m.days) == 0 {
			return m, nil
		}
		return m, m.toggleCmd(m.days[m.selected].Date)
	}
	return m, nil
}

func (m Model) toggleCmd(date string) tea.Cmd {
	if m.store == nil {
		state := aggregate.ToggleExpansion(date, m.state)
		return func() tea.Msg { return toggledMsg{date: date, state: state} }
	}
	ctx, store, userID, kind := m.ctx, m.store, m.userID, m.kind
	return func() tea.Msg {
		state, err := store.Toggle(ctx, userID, kind, date)
		return toggledMsg{date: date, state: state, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Render(m.title, m.days, m.state, m.selected))

	if m.errorLine != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("! " + m.errorLine))
		b.WriteByte('\n')
	} else if m.statusLine != "" {
		b.WriteString("\n")
		b.WriteString(m.statusLine)
		b.WriteByte('\n')
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("j/k select  enter/space toggle  q quit"))
	b.WriteByte('\n')
	return b.String()
}

// Render prints days, listing the logs of expanded days. selected < 0
// highlights nothing.
func Render(title string, days []Day, state aggregate.ExpansionState, selected int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if len(days) == 0 {
		b.WriteString("(no logs)\n")
		return b.String()
	}

	for i, day := range days {
		marker := "+"
		if state.Expanded(day.Date) {
			marker = "-"
		}
		header := fmt.Sprintf("%s %s  %s", marker, day.Date, day.Summary)
		if day.Undated > 0 {
			header += fmt.Sprintf(" (%d undated)", day.Undated)
		}
		if i == selected {
			b.WriteString(selectedStyle.Render("> " + header))
		} else {
			b.WriteString("  " + header)
		}
		b.WriteByte('\n')

		if !state.Expanded(day.Date) {
			continue
		}
		for _, line := range day.Lines {
			b.WriteString(lineStyle.Render(line))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
