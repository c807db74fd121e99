// Package tui is a terminal front-end to a buyer's task collection.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/database"
)

// Backend is the tasks API acting for the signed-in buyer.
type Backend interface {
	dashboard.TaskAPI
	dashboard.TaskLoader
}

type mode int

const (
	modeList mode = iota
	modeEdit
	modeConfirm
)

// editFields are the draft fields shown in the edit box, in tab order.
var editFields = []struct{ name, label string }{
	{"taskTitle", "Task Title"},
	{"taskDetails", "Task Details"},
	{"submissionInfo", "Submission Info"},
}

type note struct {
	level   string
	message string
}

// collector keeps the notifications of one remote call so they can be shown
// once its message arrives.
type collector struct {
	notes []note
}

func (c *collector) NotifySuccess(_ context.Context, message string) {
	c.notes = append(c.notes, note{"success", message})
}

func (c *collector) NotifyError(_ context.Context, message string) {
	c.notes = append(c.notes, note{"error", message})
}

type loadedMsg struct {
	tasks []database.Task
	err   error
}

type doneMsg struct {
	op    dashboard.Op
	err   error
	notes []note
}

// Model is the bubbletea model of the task list.
type Model struct {
	ctx   context.Context
	email string
	api   Backend
	view  *dashboard.TaskView

	pager  paginator.Model
	inputs []textinput.Model
	focus  int
	cursor int
	mode   mode

	pendingDelete string
	loaded        bool
	busy          bool
	loadErr       error
	status        *note

	width int
	now   func() time.Time
}

func New(ctx context.Context, email string, api Backend) Model {
	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = dashboard.PageSize
	p.TotalPages = 1

	inputs := make([]textinput.Model, len(editFields))
	for i, f := range editFields {
		in := textinput.New()
		in.Prompt = f.label + ": "
		in.CharLimit = 500
		inputs[i] = in
	}

	return Model{
		ctx:    ctx,
		email:  email,
		api:    api,
		view:   dashboard.NewTaskView(nil),
		pager:  p,
		inputs: inputs,
		now:    time.Now,
	}
}

// Run shows the task list until the user quits.
func Run(ctx context.Context, email string, api Backend) error {
	p := tea.NewProgram(New(ctx, email, api), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	ctx, api, email := m.ctx, m.api, m.email
	return func() tea.Msg {
		tasks, err := api.ListTasks(ctx, email)
		return loadedMsg{tasks: tasks, err: err}
	}
}

func (m Model) submit() tea.Cmd {
	ctx, api, view := m.ctx, m.api, m.view
	return func() tea.Msg {
		var c collector
		_, err := view.Submit(ctx, api, &c)
		return doneMsg{op: dashboard.OpUpdate, err: err, notes: c.notes}
	}
}

func (m Model) remove(id string) tea.Cmd {
	ctx, api, view := m.ctx, m.api, m.view
	return func() tea.Msg {
		var c collector
		// The user already answered yes in the confirm box.
		yes := dashboard.ConfirmFunc(func(context.Context, string) bool { return true })
		view.Delete(ctx, api, yes, &c, id)
		return doneMsg{op: dashboard.OpDelete, notes: c.notes}
	}
}

// sync pulls the page window back from the view after it changed.
func (m *Model) sync() {
	snap := m.view.Snapshot()
	if snap.PageCount > 0 {
		m.pager.TotalPages = snap.PageCount
	} else {
		m.pager.TotalPages = 1
	}
	m.pager.Page = snap.Page
	if m.cursor >= len(snap.Tasks) {
		m.cursor = max(len(snap.Tasks)-1, 0)
	}
}

func (m Model) selected() (database.Task, bool) {
	snap := m.view.Snapshot()
	if m.cursor < 0 || m.cursor >= len(snap.Tasks) {
		return database.Task{}, false
	}
	return snap.Tasks[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loadedMsg:
		m.busy = false
		if msg.err != nil {
			m.loadErr = msg.err
			m.status = &note{"error", fmt.Sprintf("Failed to load tasks: %s", msg.err.Error())}
			return m, nil
		}
		m.loaded = true
		m.loadErr = nil
		m.view.Reload(msg.tasks)
		m.sync()
		return m, nil

	case doneMsg:
		m.busy = false
		if msg.op == dashboard.OpUpdate && errors.Is(msg.err, dashboard.ErrDraftInvalid) {
			m.status = &note{"error", "Task title and details are required."}
			return m, nil
		}
		if msg.op == dashboard.OpUpdate {
			m.mode = modeList
		}
		m.status = nil
		if len(msg.notes) > 0 {
			last := msg.notes[len(msg.notes)-1]
			m.status = &last
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.view.Snapshot().Tasks)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		m.busy = true
		m.status = nil
		return m, m.load()
	case "e", "enter":
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.view.StartEdit(t.ID); err != nil {
			return m, nil
		}
		values := []string{t.Title, t.Details, t.SubmissionInfo}
		for i := range m.inputs {
			m.inputs[i].SetValue(values[i])
			m.inputs[i].Blur()
		}
		m.focus = 0
		m.mode = modeEdit
		m.status = nil
		return m, m.inputs[0].Focus()
	case "d":
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.pendingDelete = t.ID
		m.mode = modeConfirm
		return m, nil
	}

	var cmd tea.Cmd
	before := m.pager.Page
	m.pager, cmd = m.pager.Update(msg)
	if m.pager.Page != before {
		m.view.SetPage(m.pager.Page)
		m.cursor = 0
		m.sync()
	}
	return m, cmd
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view.CancelEdit()
		m.mode = modeList
		return m, nil
	case "tab", "shift+tab":
		m.inputs[m.focus].Blur()
		if msg.String() == "tab" {
			m.focus = (m.focus + 1) % len(m.inputs)
		} else {
			m.focus = (m.focus + len(m.inputs) - 1) % len(m.inputs)
		}
		return m, m.inputs[m.focus].Focus()
	case "enter":
		for i, f := range editFields {
			if err := m.view.ChangeField(f.name, m.inputs[i].Value()); err != nil {
				m.status = &note{"error", err.Error()}
				m.mode = modeList
				return m, nil
			}
		}
		m.busy = true
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.pendingDelete
		m.pendingDelete = ""
		m.mode = modeList
		m.busy = true
		return m, m.remove(id)
	case "n", "N", "esc":
		m.pendingDelete = ""
		m.mode = modeList
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("My Tasks"))
	b.WriteString("  ")
	b.WriteString(subtleStyle.Render(m.email))
	b.WriteString("\n")

	switch {
	case m.loadErr != nil && !m.loaded:
		b.WriteString(errorStyle.Render("Your tasks could not be loaded. Press r to retry."))
		b.WriteString("\n")
	case !m.loaded:
		b.WriteString(subtleStyle.Render("Loading tasks..."))
		b.WriteString("\n")
	default:
		b.WriteString(m.renderTable())
	}

	switch m.mode {
	case modeEdit:
		b.WriteString("\n")
		b.WriteString(m.renderEdit())
	case modeConfirm:
		b.WriteString("\n")
		b.WriteString(boxStyle.Render(dashboard.DeleteConfirmation + "\n\n" + subtleStyle.Render("y delete · n cancel")))
	}

	if m.status != nil {
		b.WriteString("\n")
		style := successStyle
		if m.status.level == "error" {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status.message))
	}

	b.WriteString("\n\n")
	b.WriteString(subtleStyle.Render(m.help()))
	return b.String()
}

func (m Model) renderTable() string {
	snap := m.view.Snapshot()
	if snap.Empty() {
		return subtleStyle.Render("You haven't posted any tasks yet.") + "\n\n" + dashboard.Summary(snap, m.now()) + "\n"
	}

	var rows []string
	for i, t := range snap.Tasks {
		row := dashboard.NewTaskRow(t, snap.Offset+i)
		line := fmt.Sprintf("%3d  %-48s %3d  %9s  %s",
			snap.Offset+i+1, row.ShortTitle, row.Workers, row.Payment, row.DueDate)
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case row.Striped:
			line = stripedStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		rows = append(rows, line)
	}

	header := subtleStyle.Render(fmt.Sprintf("  %3s  %-48s %3s  %9s  %s", "#", "Title", "Wkr", "Payment", "Due"))
	out := lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, rows...)...)
	out += "\n"
	if snap.PageCount > 1 {
		out += "\n" + m.pager.View() + "\n"
	}
	return out + "\n" + dashboard.Summary(snap, m.now()) + "\n"
}

func (m Model) renderEdit() string {
	lines := []string{selectedStyle.Render("Update Task")}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, "", subtleStyle.Render("enter save · tab next field · esc cancel"))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) help() string {
	switch m.mode {
	case modeEdit, modeConfirm:
		return "ctrl+c quit"
	}
	return "↑/↓ select · ←/→ page · e edit · d delete · r reload · q quit"
}
