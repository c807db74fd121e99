package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/microjobs/database"
	"github.com/CrowderSoup/microjobs/services"
)

// maxBodySize bounds task request bodies.
const maxBodySize = 1 << 20

// DataHandler serves the tasks API
type DataHandler struct {
	dataService *database.DataService
}

func NewDataHandler(dataService *database.DataService) *DataHandler {
	return &DataHandler{
		dataService: dataService,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		code = http.StatusInternalServerError
		b = []byte(`{"error":"Failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(append(b, '\n')); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// caller returns the signed-in user with their stored role. Users that were
// never registered act as buyers of their own tasks only.
func (h *DataHandler) caller(r *http.Request) (database.User, error) {
	email, _ := services.EmailFromContext(r.Context())
	u, err := h.dataService.GetUser(r.Context(), email)
	if errors.Is(err, database.ErrNotFound) {
		return database.User{Email: email}, nil
	}
	if err != nil {
		return database.User{}, err
	}
	return *u, nil
}

func canManage(u database.User, t *database.Task) bool {
	return u.Role == database.RoleAdmin || t.BuyerEmail == u.Email
}

// ListTasks returns the tasks of one buyer, oldest first
func (h *DataHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	u, err := h.caller(r)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}

	buyer := strings.TrimSpace(r.URL.Query().Get("buyerEmail"))
	if buyer == "" {
		buyer = u.Email
	}
	if buyer != u.Email && u.Role != database.RoleAdmin {
		writeErr(w, http.StatusForbidden, "you can only list your own tasks")
		return
	}

	tasks, err := h.dataService.ListTasksByBuyer(r.Context(), buyer)
	if err != nil {
		log.Printf("Error listing tasks: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask stores a new task owned by the caller
func (h *DataHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	u, err := h.caller(r)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}
	if u.Role == database.RoleWorker {
		writeErr(w, http.StatusForbidden, "workers cannot post tasks")
		return
	}

	var in database.Task
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if msg := validateTask(in); msg != "" {
		writeErr(w, http.StatusBadRequest, msg)
		return
	}
	in.BuyerEmail = u.Email

	created, err := h.dataService.CreateTask(r.Context(), in)
	if err != nil {
		log.Printf("Error creating task: %v", err)
		writeErr(w, http.StatusInternalServerError, "Failed to save task")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetTask returns one task
func (h *DataHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, u, ok := h.loadManaged(w, r)
	if !ok {
		return
	}
	if task == nil {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}
	if !canManage(u, task) {
		writeErr(w, http.StatusForbidden, "you do not own this task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask applies the fields present in the body to a task
func (h *DataHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, u, ok := h.loadManaged(w, r)
	if !ok {
		return
	}
	if task == nil {
		writeErr(w, http.StatusNotFound, "task not found")
		return
	}
	if !canManage(u, task) {
		writeErr(w, http.StatusForbidden, "you do not own this task")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	updated, err := applyPatch(*task, body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if msg := validateTask(updated); msg != "" {
		writeErr(w, http.StatusBadRequest, msg)
		return
	}

	var modified int64
	if updated != *task {
		modified, err = h.dataService.UpdateTask(r.Context(), updated)
		if err != nil {
			log.Printf("Error updating task %s: %v", task.ID, err)
			writeErr(w, http.StatusInternalServerError, "Failed to save task")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledged":  true,
		"modifiedCount": modified,
	})
}

// DeleteTask removes a task. Deleting a task that no longer exists succeeds
// with a zero count.
func (h *DataHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task, u, ok := h.loadManaged(w, r)
	if !ok {
		return
	}
	if task == nil {
		writeJSON(w, http.StatusOK, map[string]any{"deletedCount": 0})
		return
	}
	if !canManage(u, task) {
		writeErr(w, http.StatusForbidden, "you do not own this task")
		return
	}

	n, err := h.dataService.DeleteTask(r.Context(), task.ID)
	if err != nil {
		log.Printf("Error deleting task %s: %v", task.ID, err)
		writeErr(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": n})
}

// loadManaged fetches the task named in the path along with the caller. A
// missing task is reported as nil. ok is false once an error was written.
func (h *DataHandler) loadManaged(w http.ResponseWriter, r *http.Request) (*database.Task, database.User, bool) {
	u, err := h.caller(r)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return nil, u, false
	}

	task, err := h.dataService.GetTask(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		return nil, u, true
	}
	if err != nil {
		log.Printf("Error getting task: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return nil, u, false
	}
	return task, u, true
}

// UserRole returns the role of a user. Only the user themself or an admin
// may ask.
func (h *DataHandler) UserRole(w http.ResponseWriter, r *http.Request) {
	u, err := h.caller(r)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}

	email := mux.Vars(r)["email"]
	if email != u.Email && u.Role != database.RoleAdmin {
		writeErr(w, http.StatusForbidden, "forbidden")
		return
	}

	target, err := h.dataService.GetUser(r.Context(), email)
	if errors.Is(err, database.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("Error getting user %s: %v", email, err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": target.Role})
}

// RegisterUser stores the caller as a worker or buyer. Admins may register
// anyone with any role.
func (h *DataHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.caller(r)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		writeErr(w, http.StatusInternalServerError, "Server error")
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if req.Email == "" {
		req.Email = u.Email
	}

	isAdmin := u.Role == database.RoleAdmin
	switch {
	case !database.ValidRole(req.Role):
		writeErr(w, http.StatusBadRequest, "role must be worker, buyer or admin")
		return
	case !isAdmin && (req.Email != u.Email || req.Role == database.RoleAdmin):
		writeErr(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.dataService.SaveUser(r.Context(), req.Email, req.Role); err != nil {
		log.Printf("Error saving user %s: %v", req.Email, err)
		writeErr(w, http.StatusInternalServerError, "Failed to save user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": req.Email, "role": req.Role})
}

func (h *DataHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateTask(t database.Task) string {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return "taskTitle is required"
	case strings.TrimSpace(t.Details) == "":
		return "taskDetails is required"
	case t.RequiredWorkers < 0:
		return "requiredWorkers cannot be negative"
	case math.IsNaN(t.PayableAmount) || math.IsInf(t.PayableAmount, 0):
		return "payableAmount must be a finite number"
	case t.PayableAmount < 0:
		return "payableAmount cannot be negative"
	}
	return ""
}

// applyPatch copies the fields present in body onto t. The id and owner are
// never changed and unknown fields are ignored.
func applyPatch(t database.Task, body []byte) (database.Task, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(body, &present); err != nil {
		return t, err
	}
	var patch database.Task
	if err := json.Unmarshal(body, &patch); err != nil {
		return t, err
	}

	for key := range present {
		switch key {
		case "taskTitle":
			t.Title = patch.Title
		case "taskDetails":
			t.Details = patch.Details
		case "requiredWorkers":
			t.RequiredWorkers = patch.RequiredWorkers
		case "payableAmount":
			t.PayableAmount = patch.PayableAmount
		case "completationDate":
			t.CompletionDate = patch.CompletionDate
		case "image":
			t.Image = patch.Image
		case "submissionInfo":
			t.SubmissionInfo = patch.SubmissionInfo
		}
	}
	return t, nil
}
