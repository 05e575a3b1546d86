package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TaskPriority is the urgency level of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Appointment is one scheduled club event.
type Appointment struct {
	ID              string    `db:"id" json:"id"`
	Header          string    `db:"header" json:"header"`
	Date            time.Time `db:"event_date" json:"date"`
	Time            string    `db:"event_time" json:"time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	ContactEmail    string    `db:"contact_email" json:"contact_email"`
	Notes           string    `db:"notes" json:"notes"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Task is an assignable work item with a due timestamp. Emails is a
// JSONB array of assignee addresses; the first address is the owner.
type Task struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	DueAt       time.Time      `db:"due_at" json:"due_at"`
	Priority    TaskPriority   `db:"priority" json:"priority"`
	Done        bool           `db:"done" json:"done"`
	Emails      types.JSONText `db:"emails" json:"emails"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// DecodeEmails returns the task's assignee emails, accepting both the
// array shape and the legacy double-encoded string shape.
func (t *Task) DecodeEmails() ([]string, error) {
	return decodeFlexible[string](t.Emails)
}

// ScheduleSource marks where a merged schedule item came from.
type ScheduleSource string

const (
	SourceAppointment ScheduleSource = "appointment"
	SourceTask        ScheduleSource = "task"
)

// Display colors for schedule items. Task-sourced items use the
// alternate color so they stand out on the day view.
const (
	ColorDefault   = "blue"
	ColorAlternate = "orange"
)

// ScheduleItem is one entry in the unified day view, built from either
// an appointment or a task owned by the viewer.
type ScheduleItem struct {
	ID              string         `json:"id"`
	Date            time.Time      `json:"date"`
	Time            string         `json:"time"`
	DurationMinutes int            `json:"duration_minutes"`
	Title           string         `json:"title"`
	ContactEmail    string         `json:"contact_email,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Source          ScheduleSource `json:"source"`
	Color           string         `json:"color"`
}

// DayBadge summarises a day's schedule for the month overview.
type DayBadge struct {
	Count      int    `json:"count"`
	ColorClass string `json:"color_class"`
}
