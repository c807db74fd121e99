package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"github.com/CrowderSoup/microjobs/dashboard"
	"github.com/CrowderSoup/microjobs/database"
	"github.com/CrowderSoup/microjobs/services"
)

// viewportCookie carries the last width reported by the page script.
const viewportCookie = "mj_vw"

// TaskBackend is the remote task API as seen by one signed-in user.
type TaskBackend interface {
	dashboard.TaskAPI
	dashboard.TaskLoader
}

// BackendFunc returns the API client acting with a session token.
type BackendFunc func(token string) TaskBackend

// editableFields are the draft fields the edit form may send.
var editableFields = []string{
	"taskTitle", "taskDetails", "submissionInfo",
	"image", "completationDate", "requiredWorkers", "payableAmount",
}

// DashboardHandler renders the signed-in pages
type DashboardHandler struct {
	roles    dashboard.RoleResolver
	store    *dashboard.Store
	notes    dashboard.Notifier
	backend  BackendFunc
	renderer *Renderer
	markdown goldmark.Markdown
	now      func() time.Time
}

func NewDashboardHandler(roles dashboard.RoleResolver, store *dashboard.Store, notes dashboard.Notifier, backend BackendFunc, renderer *Renderer) *DashboardHandler {
	return &DashboardHandler{
		roles:    roles,
		store:    store,
		notes:    notes,
		backend:  backend,
		renderer: renderer,
		markdown: goldmark.New(),
		now:      time.Now,
	}
}

type tableRow struct {
	dashboard.TaskRow
	Number int
}

type myTasksPage struct {
	Rows      []tableRow
	Pager     []dashboard.PageItem
	Page      int
	PageCount int
	Empty     bool
	Summary   string
}

type taskDetailPage struct {
	Row         dashboard.TaskRow
	DetailsHTML template.HTML
}

type taskEditPage struct {
	Draft database.Task
	Error string
}

type confirmDeletePage struct {
	Row      dashboard.TaskRow
	Question string
}

// viewportWidth reads the width from client hints, the page script's cookie
// or a vw query parameter. Zero means unknown.
func viewportWidth(r *http.Request) int {
	candidates := []string{
		r.Header.Get("Sec-CH-Viewport-Width"),
		r.Header.Get("Viewport-Width"),
	}
	if c, err := r.Cookie(viewportCookie); err == nil {
		candidates = append(candidates, c.Value)
	}
	candidates = append(candidates, r.URL.Query().Get("vw"))

	for _, v := range candidates {
		if w, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && w > 0 {
			return w
		}
	}
	return 0
}

func sidebarFor(r *http.Request) dashboard.Sidebar {
	var s dashboard.Sidebar
	s.Resize(viewportWidth(r))
	if r.URL.Query().Get("menu") == "open" {
		s.Open()
	}
	return s
}

// begin resolves the role and checks access to the requested page. It
// writes the loading or forbidden page itself and then reports false.
func (h *DashboardHandler) begin(w http.ResponseWriter, r *http.Request, title string) (pageData, bool) {
	ctx := r.Context()
	email, _ := services.EmailFromContext(ctx)
	role := h.roles.ResolveRole(ctx, email)

	w.Header().Set("Accept-CH", "Sec-CH-Viewport-Width, Viewport-Width")

	data := pageData{
		Title: title,
		Email: email,
		Nav:   dashboard.BuildNavigation(role, r.URL.Path, sidebarFor(r)),
		Path:  r.URL.RequestURI(),
	}

	if data.Nav.Loading {
		data.Title = "Loading"
		data.RefreshSecs = 1
		h.renderer.Render(w, http.StatusOK, "loading", data)
		return data, false
	}
	if !dashboard.Allows(role, r.URL.Path) {
		h.renderError(w, data, http.StatusForbidden, "Not allowed", "You don't have access to this page.")
		return data, false
	}

	data.Notices = notices(ctx, h.notes)
	return data, true
}

func (h *DashboardHandler) renderError(w http.ResponseWriter, data pageData, status int, title, message string) {
	data.Title = title
	data.Body = message
	h.renderer.Render(w, status, "error", data)
}

func (h *DashboardHandler) backendFor(ctx context.Context) TaskBackend {
	return h.backend(services.TokenFromContext(ctx))
}

// view returns the cached task view of the session, loading it on first use.
func (h *DashboardHandler) view(ctx context.Context, reload bool) (*dashboard.TaskView, error) {
	email, _ := services.EmailFromContext(ctx)
	return h.store.Load(ctx, sessionKey(ctx), email, h.backendFor(ctx), reload)
}

func myTasksURL(v *dashboard.TaskView) string {
	return dashboard.MyTasksPath + "?page=" + strconv.Itoa(v.Page()+1)
}

// Home is the landing page for every role
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Dashboard")
	if !ok {
		return
	}
	h.renderer.Render(w, http.StatusOK, "home", data)
}

// Section renders the menu entries that have no page of their own yet
func (h *DashboardHandler) Section(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "")
	if !ok {
		return
	}
	for _, item := range data.Nav.Items {
		if item.Active {
			data.Title = item.Label
		}
	}
	h.renderer.Render(w, http.StatusOK, "section", data)
}

// MyTasks lists the buyer's tasks, one page at a time
func (h *DashboardHandler) MyTasks(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "My Tasks")
	if !ok {
		return
	}

	q := r.URL.Query()
	v, err := h.view(r.Context(), q.Get("reload") == "1")
	if err != nil {
		log.Printf("Error loading tasks: %v", err)
		h.renderError(w, data, http.StatusBadGateway, "My Tasks", "Your tasks could not be loaded. Try again in a moment.")
		return
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil {
		v.SetPage(p - 1)
	}

	snap := v.Snapshot()
	page := myTasksPage{
		Pager:     dashboard.PageItems(snap.Page, snap.PageCount, 3),
		Page:      snap.Page,
		PageCount: snap.PageCount,
		Empty:     snap.Empty(),
		Summary:   dashboard.Summary(snap, h.now()),
	}
	for i, t := range snap.Tasks {
		index := snap.Offset + i
		page.Rows = append(page.Rows, tableRow{TaskRow: dashboard.NewTaskRow(t, index), Number: index + 1})
	}

	data.Body = page
	h.renderer.Render(w, http.StatusOK, "my_tasks", data)
}

// taskFor loads the session view and finds the task named in the path. It
// writes an error page and reports false when that fails.
func (h *DashboardHandler) taskFor(w http.ResponseWriter, r *http.Request, data pageData) (*dashboard.TaskView, database.Task, bool) {
	v, err := h.view(r.Context(), false)
	if err != nil {
		log.Printf("Error loading tasks: %v", err)
		h.renderError(w, data, http.StatusBadGateway, "My Tasks", "Your tasks could not be loaded. Try again in a moment.")
		return nil, database.Task{}, false
	}
	t, ok := v.Task(mux.Vars(r)["id"])
	if !ok {
		h.renderError(w, data, http.StatusNotFound, "Task not found", "This task no longer exists.")
		return v, t, false
	}
	return v, t, true
}

// TaskDetail shows one task with its details rendered from Markdown
func (h *DashboardHandler) TaskDetail(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Task")
	if !ok {
		return
	}
	_, t, ok := h.taskFor(w, r, data)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(t.Details), &buf); err != nil {
		log.Printf("Error rendering details of %s: %v", t.ID, err)
		buf.Reset()
		buf.WriteString(template.HTMLEscapeString(t.Details))
	}

	row := dashboard.NewTaskRow(t, 0)
	data.Title = row.ShortTitle
	data.Body = taskDetailPage{Row: row, DetailsHTML: template.HTML(buf.String())}
	h.renderer.Render(w, http.StatusOK, "task_detail", data)
}

// EditForm opens the edit form. A draft already open for the same task is
// kept so a rejected submission can be corrected.
func (h *DashboardHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Update Task")
	if !ok {
		return
	}
	v, t, ok := h.taskFor(w, r, data)
	if !ok {
		return
	}

	draft, editing := v.Snapshot().Draft, v.EditState() == dashboard.EditEditing
	if !editing || draft.ID != t.ID {
		if err := v.StartEdit(t.ID); err != nil {
			h.renderError(w, data, http.StatusNotFound, "Task not found", "This task no longer exists.")
			return
		}
		draft = t
	}

	data.Body = taskEditPage{Draft: draft}
	h.renderer.Render(w, http.StatusOK, "task_edit", data)
}

// SubmitEdit applies the posted fields to the draft and sends it
func (h *DashboardHandler) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Update Task")
	if !ok {
		return
	}
	v, t, ok := h.taskFor(w, r, data)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderError(w, data, http.StatusBadRequest, "Update Task", "The form could not be read.")
		return
	}

	if snap := v.Snapshot(); !snap.Editing || snap.Draft.ID != t.ID {
		if err := v.StartEdit(t.ID); err != nil {
			h.renderError(w, data, http.StatusNotFound, "Task not found", "This task no longer exists.")
			return
		}
	}

	for _, name := range editableFields {
		values, present := r.PostForm[name]
		if !present || len(values) == 0 {
			continue
		}
		if err := v.ChangeField(name, values[0]); err != nil {
			draft := v.Snapshot().Draft
			data.Body = taskEditPage{Draft: draft, Error: "Invalid value for " + name + "."}
			h.renderer.Render(w, http.StatusUnprocessableEntity, "task_edit", data)
			return
		}
	}

	ctx := r.Context()
	_, err := v.Submit(ctx, h.backendFor(ctx), h.notes)
	switch {
	case errors.Is(err, dashboard.ErrDraftInvalid):
		data.Body = taskEditPage{Draft: v.Snapshot().Draft, Error: "Task title and details are required."}
		h.renderer.Render(w, http.StatusUnprocessableEntity, "task_edit", data)
		return
	case err != nil:
		log.Printf("Error submitting task %s: %v", t.ID, err)
	}

	http.Redirect(w, r, myTasksURL(v), http.StatusSeeOther)
}

// CancelEdit discards the open draft
func (h *DashboardHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.begin(w, r, "Update Task"); !ok {
		return
	}
	if v, ok := h.store.Get(sessionKey(r.Context())); ok {
		v.CancelEdit()
		http.Redirect(w, r, myTasksURL(v), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, dashboard.MyTasksPath, http.StatusSeeOther)
}

// ConfirmDelete asks before a task is deleted
func (h *DashboardHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Delete task")
	if !ok {
		return
	}
	_, t, ok := h.taskFor(w, r, data)
	if !ok {
		return
	}

	data.Body = confirmDeletePage{Row: dashboard.NewTaskRow(t, 0), Question: dashboard.DeleteConfirmation}
	h.renderer.Render(w, http.StatusOK, "confirm_delete", data)
}

// DeleteTask deletes a task once the confirmation form was answered yes
func (h *DashboardHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	data, ok := h.begin(w, r, "Delete task")
	if !ok {
		return
	}
	v, t, ok := h.taskFor(w, r, data)
	if !ok {
		return
	}

	confirmed := dashboard.ConfirmFunc(func(context.Context, string) bool {
		return r.PostFormValue("confirm") == "yes"
	})

	ctx := r.Context()
	v.Delete(ctx, h.backendFor(ctx), confirmed, h.notes, t.ID)
	http.Redirect(w, r, myTasksURL(v), http.StatusSeeOther)
}
