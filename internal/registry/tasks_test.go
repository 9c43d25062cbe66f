package registry

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestTaskNormalize(t *testing.T) {
	date := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	task := Task{
		Type:        TaskMedReminder,
		Description: "  blood pressure pills ",
		Date:        date,
		RepeatDays:  []string{"Fri", "Mon", "Fri", "Sun"},
	}
	if err := task.Normalize(); err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if task.Description != "blood pressure pills" {
		t.Errorf("Description = %q", task.Description)
	}
	if want := []string{"Sun", "Mon", "Fri"}; !slices.Equal(task.RepeatDays, want) {
		t.Errorf("RepeatDays = %v, want %v", task.RepeatDays, want)
	}
}

func TestTaskNormalize_Invalid(t *testing.T) {
	date := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		task Task
	}{
		{"no description", Task{Type: TaskExercise, Description: "  ", Date: date}},
		{"unknown type", Task{Type: "Gardening", Description: "water plants", Date: date}},
		{"no date", Task{Type: TaskExercise, Description: "walk"}},
		{"unknown day", Task{Type: TaskExercise, Description: "walk", Date: date, RepeatDays: []string{"Monday"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.task.Normalize(); !errors.Is(err, ErrInvalidTask) {
				t.Errorf("Normalize() error = %v, want ErrInvalidTask", err)
			}
		})
	}
}

func TestSortTasks(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "late", Date: base.Add(2 * time.Hour)},
		{ID: "b", Date: base, CreatedAt: base},
		{ID: "a", Date: base, CreatedAt: base},
		{ID: "first-created", Date: base, CreatedAt: base.Add(-time.Hour)},
	}
	SortTasks(tasks)

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	if want := []string{"first-created", "a", "b", "late"}; !slices.Equal(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestDefaultStatus(t *testing.T) {
	status := DefaultStatus()
	if len(status) != len(StatusKeys) {
		t.Fatalf("DefaultStatus() has %d flags, want %d", len(status), len(StatusKeys))
	}
	for _, key := range []string{StatusCompleted, StatusRefused, StatusPartial, StatusPending} {
		set, ok := status[key]
		if !ok || set {
			t.Errorf("status[%q] = %v (present %v), want cleared", key, set, ok)
		}
	}
}

func TestValidateStatus(t *testing.T) {
	if err := ValidateStatus(map[string]bool{StatusCompleted: true, StatusPending: false}); err != nil {
		t.Errorf("ValidateStatus(known flags) error: %v", err)
	}
	for _, bad := range []map[string]bool{nil, {}, {"banned": true}} {
		if err := ValidateStatus(bad); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("ValidateStatus(%v) error = %v, want ErrUnknownStatus", bad, err)
		}
	}
}
