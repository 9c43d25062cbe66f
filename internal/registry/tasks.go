package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

var (
	// ErrTaskNotFound is returned when the client has no task with the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTask is returned for tasks with an unknown type, day or missing description.
	ErrInvalidTask = errors.New("invalid task")
)

// Task types offered to caregivers.
const (
	TaskMedReminder  = "Med Reminders"
	TaskVitalsCheck  = "Vitals Check"
	TaskHouseKeeping = "House Keeping"
	TaskExercise     = "Exercise"
	TaskAppointment  = "Appointments"
)

// TaskTypes lists the accepted task types.
var TaskTypes = []string{TaskMedReminder, TaskVitalsCheck, TaskHouseKeeping, TaskExercise, TaskAppointment}

// Weekdays are the accepted RepeatDays values, Sunday first.
var Weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Task is a reminder attached to a client. Date carries the time of day; RepeatDays, when set,
// repeats it weekly on those days instead of firing once.
type Task struct {
	ID          string             `json:"id"`
	ClientID    facematch.Identity `json:"client_id"`
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Date        time.Time          `json:"date"`
	RepeatDays  []string           `json:"repeat_days"`
	Disabled    bool               `json:"disabled"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Tasks stores per-client reminders.
type Tasks interface {
	// AddTask stores a new task. ID and CreatedAt are assigned; an unknown client yields ErrClientNotFound.
	AddTask(ctx context.Context, t *Task) error
	// ListTasks returns the client's tasks ordered by Date, then creation.
	ListTasks(ctx context.Context, clientID facematch.Identity) ([]Task, error)
	DeleteTask(ctx context.Context, clientID facematch.Identity, taskID string) error
}

// Normalize trims the description and sorts RepeatDays into week order, then validates the task.
func (t *Task) Normalize() error {
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidTask)
	}
	if !slices.Contains(TaskTypes, t.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTask, t.Type)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTask)
	}

	days := make([]string, 0, len(t.RepeatDays))
	for _, day := range t.RepeatDays {
		if !slices.Contains(Weekdays, day) {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidTask, day)
		}
		if !slices.Contains(days, day) {
			days = append(days, day)
		}
	}
	slices.SortFunc(days, func(a, b string) int {
		return slices.Index(Weekdays, a) - slices.Index(Weekdays, b)
	})
	t.RepeatDays = days
	return nil
}

// SortTasks orders tasks by Date, then CreatedAt, then ID.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
