package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CrowderSoup/microjobs/database"
)

// TaskAPI is the remote side of the task collection.
type TaskAPI interface {
	UpdateTask(ctx context.Context, task database.Task) (int64, error)
	DeleteTask(ctx context.Context, id string) error
}

// TaskLoader supplies the initial collection for a buyer.
type TaskLoader interface {
	ListTasks(ctx context.Context, buyerEmail string) ([]database.Task, error)
}

// Notifier shows non-blocking messages to the user.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyError(ctx context.Context, message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	ConfirmDestructive(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) ConfirmDestructive(ctx context.Context, message string) bool {
	return f(ctx, message)
}

// DeleteConfirmation is the question asked before a delete.
const DeleteConfirmation = "Are you sure? You won't be able to revert this!"

// Op identifies the remote operation a Result came from.
type Op int

const (
	OpUpdate Op = iota + 1
	OpDelete
)

// Result is the outcome of one remote call. It is Ok when Err is nil.
type Result struct {
	Op       Op
	ID       string
	Task     database.Task
	Modified int64
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

// UpdateTask sends draft to the API. It does not touch any view.
func UpdateTask(ctx context.Context, api TaskAPI, draft database.Task) Result {
	n, err := api.UpdateTask(ctx, draft)
	return Result{Op: OpUpdate, ID: draft.ID, Task: draft, Modified: n, Err: err}
}

// RemoveTask deletes the task with id through the API. It does not touch any
// view.
func RemoveTask(ctx context.Context, api TaskAPI, id string) Result {
	err := api.DeleteTask(ctx, id)
	return Result{Op: OpDelete, ID: id, Err: err}
}

// NotifyResult reports r to the user. An update that modified nothing is
// not announced.
func NotifyResult(ctx context.Context, n Notifier, r Result) {
	if n == nil {
		return
	}
	switch r.Op {
	case OpUpdate:
		if !r.OK() {
			n.NotifyError(ctx, fmt.Sprintf("Failed to update task: %s", r.Err.Error()))
			return
		}
		if r.Modified > 0 {
			n.NotifySuccess(ctx, "Your task has been successfully updated.")
		}
	case OpDelete:
		if !r.OK() {
			n.NotifyError(ctx, fmt.Sprintf("Failed to delete task: %s", r.Err.Error()))
			return
		}
		n.NotifySuccess(ctx, "Your task has been deleted.")
	}
}

// Snapshot is a consistent copy of a TaskView for rendering.
type Snapshot struct {
	Tasks     []database.Task
	Page      int
	PageCount int
	Total     int
	Offset    int
	Editing   bool
	Draft     database.Task
	LoadedAt  time.Time
}

// Empty reports whether the empty state should be shown instead of a table.
func (s Snapshot) Empty() bool { return s.Total == 0 }

// TaskView is a buyer's cached task collection with its pagination window
// and edit draft. All methods are safe for concurrent use; remote calls are
// made without holding the lock.
type TaskView struct {
	mu       sync.Mutex
	tasks    []database.Task
	page     int
	editor   Editor
	loadedAt time.Time
}

// NewTaskView copies initial into a new view on page 0.
func NewTaskView(initial []database.Task) *TaskView {
	v := &TaskView{}
	v.Reload(initial)
	return v
}

// Reload replaces the collection with a fresh copy from the loader.
func (v *TaskView) Reload(tasks []database.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.tasks = append([]database.Task(nil), tasks...)
	v.page = ClampPage(v.page, len(v.tasks))
	v.loadedAt = time.Now()
}

func (v *TaskView) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	start, _ := PageBounds(v.page, len(v.tasks))
	s := Snapshot{
		Tasks:     append([]database.Task(nil), Paginate(v.tasks, v.page)...),
		Page:      v.page,
		PageCount: PageCount(len(v.tasks)),
		Total:     len(v.tasks),
		Offset:    start,
		LoadedAt:  v.loadedAt,
	}
	s.Draft, s.Editing = v.editor.Draft()
	return s
}

// Tasks returns a copy of the whole collection.
func (v *TaskView) Tasks() []database.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]database.Task(nil), v.tasks...)
}

// Task looks up a task by id.
func (v *TaskView) Task(id string) (database.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return database.Task{}, false
}

// SetPage selects a page. Out of range indexes are clamped.
func (v *TaskView) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page = ClampPage(page, len(v.tasks))
}

func (v *TaskView) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

func (v *TaskView) EditState() EditState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editor.State()
}

// StartEdit opens a draft of the task with id.
func (v *TaskView) StartEdit(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tasks {
		if t.ID == id {
			v.editor.Start(t)
			return nil
		}
	}
	return ErrTaskNotFound
}

func (v *TaskView) ChangeField(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editor.Change(name, value)
}

func (v *TaskView) CancelEdit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor.Cancel()
}

// Submit sends the draft to the API and applies the outcome. It fails
// without a remote call when nothing is being edited or the draft misses a
// required field; the draft is then kept. Otherwise the draft is discarded
// whether or not the update succeeded.
func (v *TaskView) Submit(ctx context.Context, api TaskAPI, n Notifier) (Result, error) {
	v.mu.Lock()
	if err := v.editor.Validate(); err != nil {
		v.mu.Unlock()
		return Result{}, err
	}
	draft, _ := v.editor.Draft()
	v.mu.Unlock()

	res := UpdateTask(ctx, api, draft)
	v.Apply(res)
	NotifyResult(ctx, n, res)
	return res, nil
}

// Delete asks for confirmation, then deletes the task with id and applies
// the outcome. It reports false when the user declined; nothing happens then.
func (v *TaskView) Delete(ctx context.Context, api TaskAPI, c Confirmer, n Notifier, id string) (Result, bool) {
	if !c.ConfirmDestructive(ctx, DeleteConfirmation) {
		return Result{}, false
	}
	res := RemoveTask(ctx, api, id)
	v.Apply(res)
	NotifyResult(ctx, n, res)
	return res, true
}

// Apply folds a remote result into the collection. Failed results leave the
// collection unchanged. After a delete the page index is clamped so the
// window never points past the last page.
func (v *TaskView) Apply(r Result) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch r.Op {
	case OpUpdate:
		v.editor.finish(r.ID)
		if !r.OK() {
			return
		}
		for i := range v.tasks {
			if v.tasks[i].ID == r.ID {
				v.tasks[i] = r.Task
			}
		}
	case OpDelete:
		if !r.OK() {
			return
		}
		kept := v.tasks[:0:0]
		for _, t := range v.tasks {
			if t.ID != r.ID {
				kept = append(kept, t)
			}
		}
		v.tasks = kept
		v.page = ClampPage(v.page, len(v.tasks))
	}
}
