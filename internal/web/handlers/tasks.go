package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/registry"
)

// TasksHandler serves the per-client task list.
type TasksHandler struct {
	tasks registry.Tasks
	log   logrus.FieldLogger
}

// NewTasksHandler creates the task handler.
func NewTasksHandler(tasks registry.Tasks, log logrus.FieldLogger) *TasksHandler {
	return &TasksHandler{tasks: tasks, log: log}
}

// taskRequest is the body of POST /clients/{id}/tasks.
type taskRequest struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	RepeatDays  []string  `json:"repeat_days"`
	Disabled    bool      `json:"disabled"`
}

// List returns the client's tasks ordered by date.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListTasks(r.Context(), clientID(r))
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	if tasks == nil {
		tasks = []registry.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

// Create adds a task to the client.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "expected a JSON task with an RFC 3339 date")
		return
	}

	task := &registry.Task{
		ClientID:    clientID(r),
		Type:        req.Type,
		Description: req.Description,
		Date:        req.Date,
		RepeatDays:  req.RepeatDays,
		Disabled:    req.Disabled,
	}
	if err := h.tasks.AddTask(r.Context(), task); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

// Delete removes one task.
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.DeleteTask(r.Context(), clientID(r), chi.URLParam(r, "taskID")); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
