package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CrowderSoup/microjobs/database"
)

var (
	ErrNotEditing   = errors.New("no task is being edited")
	ErrUnknownField = errors.New("unknown task field")
	ErrDraftInvalid = errors.New("task title and details are required")
	ErrTaskNotFound = errors.New("task not found in collection")
)

// EditState is the state of the edit flow.
type EditState int

const (
	EditIdle EditState = iota
	EditEditing
)

func (s EditState) String() string {
	if s == EditEditing {
		return "editing"
	}
	return "idle"
}

// Editor holds at most one draft.
type Editor struct {
	draft *database.Task
}

func (e *Editor) State() EditState {
	if e.draft == nil {
		return EditIdle
	}
	return EditEditing
}

// Start begins editing a shallow copy of task, replacing any earlier draft.
func (e *Editor) Start(task database.Task) {
	draft := task
	e.draft = &draft
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() (database.Task, bool) {
	if e.draft == nil {
		return database.Task{}, false
	}
	return *e.draft, true
}

// Change sets one draft field by its form name. Numeric fields that are
// blank or unparseable become 0.
func (e *Editor) Change(name, value string) error {
	if e.draft == nil {
		return ErrNotEditing
	}
	d := e.draft

	switch name {
	case "taskTitle":
		d.Title = value
	case "taskDetails":
		d.Details = value
	case "submissionInfo":
		d.SubmissionInfo = value
	case "image":
		d.Image = value
	case "completationDate":
		d.CompletionDate = value
	case "requiredWorkers":
		d.RequiredWorkers = database.LooseInt(value)
	case "payableAmount":
		d.PayableAmount = database.LooseNumber(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// Validate applies the form's required-field constraints to the draft.
func (e *Editor) Validate() error {
	if e.draft == nil {
		return ErrNotEditing
	}
	if strings.TrimSpace(e.draft.Title) == "" || strings.TrimSpace(e.draft.Details) == "" {
		return ErrDraftInvalid
	}
	return nil
}

// Cancel discards the draft.
func (e *Editor) Cancel() {
	e.draft = nil
}

// finish discards the draft if it still belongs to the task with id. A draft
// started for another task after the submission began is kept.
func (e *Editor) finish(id string) {
	if e.draft != nil && e.draft.ID == id {
		e.draft = nil
	}
}
