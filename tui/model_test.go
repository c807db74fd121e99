package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/database"
)

type stubBackend struct {
	tasks   []database.Task
	listErr error
	failErr error
	updates []database.Task
	deletes []string
}

func (s *stubBackend) ListTasks(context.Context, string) ([]database.Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]database.Task(nil), s.tasks...), nil
}

func (s *stubBackend) UpdateTask(_ context.Context, t database.Task) (int64, error) {
	if s.failErr != nil {
		return 0, s.failErr
	}
	s.updates = append(s.updates, t)
	return 1, nil
}

func (s *stubBackend) DeleteTask(_ context.Context, id string) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.deletes = append(s.deletes, id)
	return nil
}

func newStub(n int) *stubBackend {
	s := &stubBackend{}
	for i := 1; i <= n; i++ {
		s.tasks = append(s.tasks, database.Task{ID: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Task %d", i), Details: "d"})
	}
	return s
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and returns the updated model with the command it
// produced.
func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	return next.(Model), cmd
}

// deliver runs cmd and feeds its message back into the model.
func deliver(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func loaded(t *testing.T, api Backend) Model {
	t.Helper()
	m := New(context.Background(), "buyer@example.com", api)
	return deliver(t, m, m.Init())
}

func TestModel_LoadsAndPaginates(t *testing.T) {
	m := loaded(t, newStub(12))

	view := m.View()
	assert.Contains(t, view, "Task 10")
	assert.NotContains(t, view, "Task 11")
	assert.Contains(t, view, "Displaying 10 of 12 tasks")
	assert.Contains(t, view, "1/2")

	m, _ = press(t, m, "right")
	view = m.View()
	assert.Contains(t, view, "Task 11")
	assert.Contains(t, view, "Task 12")
	assert.Contains(t, view, "2/2")
	assert.Equal(t, 1, m.view.Page())
}

func TestModel_EmptyState(t *testing.T) {
	m := loaded(t, newStub(0))
	assert.Contains(t, m.View(), "You haven't posted any tasks yet.")
}

func TestModel_LoadFailure(t *testing.T) {
	api := newStub(0)
	api.listErr = errors.New("connection refused")
	m := loaded(t, api)

	assert.Contains(t, m.View(), "Failed to load tasks: connection refused")
	assert.Contains(t, m.View(), "Press r to retry")
}

func TestModel_DeleteAsksFirst(t *testing.T) {
	api := newStub(3)
	m := loaded(t, api)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "d")
	assert.Contains(t, m.View(), dashboard.DeleteConfirmation)

	m, cmd := press(t, m, "n")
	assert.Nil(t, cmd)
	assert.Empty(t, api.deletes)

	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	m = deliver(t, m, cmd)

	assert.Equal(t, []string{"t2"}, api.deletes)
	assert.NotContains(t, m.View(), "Task 2")
	assert.Contains(t, m.View(), "Your task has been deleted.")
}

func TestModel_DeleteLastRowOfLastPage(t *testing.T) {
	api := newStub(11)
	m := loaded(t, api)

	m, _ = press(t, m, "right")
	m, _ = press(t, m, "d")
	m, cmd := press(t, m, "y")
	m = deliver(t, m, cmd)

	assert.Equal(t, 0, m.view.Page(), "window moves back when its page empties")
	assert.Contains(t, m.View(), "Task 10")
}

func TestModel_EditFlow(t *testing.T) {
	api := newStub(2)
	m := loaded(t, api)

	m, _ = press(t, m, "e")
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "Task 1", m.inputs[0].Value())

	m.inputs[0].SetValue("")
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)
	assert.Equal(t, modeEdit, m.mode, "invalid drafts stay open")
	assert.Empty(t, api.updates)
	assert.Contains(t, m.View(), "Task title and details are required.")

	m.inputs[0].SetValue("Renamed")
	m, cmd = press(t, m, "enter")
	m = deliver(t, m, cmd)

	assert.Equal(t, modeList, m.mode)
	require.Len(t, api.updates, 1)
	assert.Equal(t, "Renamed", api.updates[0].Title)
	assert.Contains(t, m.View(), "Renamed")
	assert.Contains(t, m.View(), "Your task has been successfully updated.")
	assert.Equal(t, dashboard.EditIdle, m.view.EditState())
}

func TestModel_EditFailureKeepsTask(t *testing.T) {
	api := newStub(1)
	m := loaded(t, api)
	api.failErr = errors.New("server error")

	m, _ = press(t, m, "e")
	m.inputs[0].SetValue("Renamed")
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd)

	assert.Equal(t, modeList, m.mode)
	assert.Contains(t, m.View(), "Failed to update task: server error")
	assert.Contains(t, m.View(), "Task 1")
	assert.Equal(t, dashboard.EditIdle, m.view.EditState())
}

func TestModel_EscCancelsEdit(t *testing.T) {
	api := newStub(1)
	m := loaded(t, api)

	m, _ = press(t, m, "e")
	m, _ = press(t, m, "tab")
	assert.Equal(t, 1, m.focus)
	m, _ = press(t, m, "esc")

	assert.Equal(t, modeList, m.mode)
	assert.Equal(t, dashboard.EditIdle, m.view.EditState())
	assert.Empty(t, api.updates)
}

func TestModel_Reload(t *testing.T) {
	api := newStub(1)
	m := loaded(t, api)
	api.tasks = append(api.tasks, database.Task{ID: "t9", Title: "Fresh", Details: "d"})

	m, cmd := press(t, m, "r")
	m = deliver(t, m, cmd)
	assert.Contains(t, m.View(), "Fresh")
	assert.True(t, strings.Contains(m.View(), "Displaying 2 of 2 tasks"))
}
