package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
)

// DefaultTaskDurationMinutes is used when no duration is configured for
// task-sourced schedule items.
const DefaultTaskDurationMinutes = 120

// DefaultAppointmentHeader fills in for events created without a title.
const DefaultAppointmentHeader = "Generic Appointment"

type appointmentRepository interface {
	ListAll(ctx context.Context) ([]models.Appointment, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) (*models.Appointment, error)
	Update(ctx context.Context, appt *models.Appointment) (*models.Appointment, error)
	Delete(ctx context.Context, id string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type taskRepository interface {
	ListAll(ctx context.Context) ([]models.Task, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Task, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) (*models.Task, error)
	SetDone(ctx context.Context, id string, done bool) error
	Delete(ctx context.Context, id string) (int64, error)
}

// ScheduleService merges appointments and the viewer's own tasks into a
// unified day view and manages both collections.
type ScheduleService struct {
	appointments appointmentRepository
	tasks        taskRepository
	validator    *validator.Validate
	logger       *zap.Logger
	taskDuration int
}

// NewScheduleService constructs the service. taskDurationMinutes sets
// the synthetic duration for task-sourced items.
func NewScheduleService(appointments appointmentRepository, tasks taskRepository, validate *validator.Validate, logger *zap.Logger, taskDurationMinutes int) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if taskDurationMinutes <= 0 {
		taskDurationMinutes = DefaultTaskDurationMinutes
	}
	return &ScheduleService{
		appointments: appointments,
		tasks:        tasks,
		validator:    validate,
		logger:       logger,
		taskDuration: taskDurationMinutes,
	}
}

// AppointmentItem converts an appointment into a schedule item.
func AppointmentItem(appt models.Appointment) models.ScheduleItem {
	return models.ScheduleItem{
		ID:              appt.ID,
		Date:            appt.Date,
		Time:            appt.Time,
		DurationMinutes: appt.DurationMinutes,
		Title:           appt.Header,
		ContactEmail:    appt.ContactEmail,
		Notes:           appt.Notes,
		Source:          models.SourceAppointment,
		Color:           models.ColorDefault,
	}
}

// TaskItem converts a task into a schedule item for the given viewer.
// A task only appears for the first assigned email, and never when the
// viewer email is empty or the due timestamp is missing.
func TaskItem(task models.Task, viewerEmail string, durationMinutes int) (models.ScheduleItem, bool) {
	if viewerEmail == "" || task.DueAt.IsZero() {
		return models.ScheduleItem{}, false
	}
	emails, err := task.DecodeEmails()
	if err != nil || len(emails) == 0 || emails[0] != viewerEmail {
		return models.ScheduleItem{}, false
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultTaskDurationMinutes
	}
	return models.ScheduleItem{
		ID:              task.ID,
		Date:            task.DueAt,
		Time:            task.DueAt.UTC().Format("15:04"),
		DurationMinutes: durationMinutes,
		Title:           task.Title,
		Notes:           task.Description,
		Source:          models.SourceTask,
		Color:           models.ColorAlternate,
	}, true
}

// MergeForDay collects appointments and the viewer's tasks that fall
// on the given calendar date, appointments first, in stored order.
// Grouping looks at the date part only, so a task due late in the
// evening still lands on its due date. Badges read this merge order,
// not the time-sorted one.
func MergeForDay(appointments []models.Appointment, tasks []models.Task, viewerEmail string, day time.Time, taskDurationMinutes int) []models.ScheduleItem {
	items := make([]models.ScheduleItem, 0, len(appointments))
	for _, appt := range appointments {
		if SameCalendarDay(appt.Date, day) {
			items = append(items, AppointmentItem(appt))
		}
	}
	for _, task := range tasks {
		item, ok := TaskItem(task, viewerEmail, taskDurationMinutes)
		if ok && SameCalendarDay(item.Date, day) {
			items = append(items, item)
		}
	}
	return items
}

// ItemsForDay is MergeForDay followed by the within-day time sort.
func ItemsForDay(appointments []models.Appointment, tasks []models.Task, viewerEmail string, day time.Time, taskDurationMinutes int) []models.ScheduleItem {
	return SortWithinDay(MergeForDay(appointments, tasks, viewerEmail, day, taskDurationMinutes))
}

// SortWithinDay orders a day's items by their time string, keeping the
// original order for equal times.
func SortWithinDay(items []models.ScheduleItem) []models.ScheduleItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time < items[j].Time
	})
	return items
}

// SummaryBadge condenses a day's items into the month-view badge. The
// first item decides the color: a day led by a task shows red, any
// other non-empty day shows blue. Callers pass the merge order, where
// appointments precede tasks, so any day with an appointment is blue.
func SummaryBadge(items []models.ScheduleItem) models.DayBadge {
	if len(items) == 0 {
		return models.DayBadge{}
	}
	badge := models.DayBadge{Count: len(items), ColorClass: "blue"}
	if items[0].Color == models.ColorAlternate {
		badge.ColorClass = "red"
	}
	return badge
}

// DayView returns the merged, sorted items for one calendar date plus
// its badge.
func (s *ScheduleService) DayView(ctx context.Context, day time.Time, viewer models.Identity) ([]models.ScheduleItem, models.DayBadge, error) {
	from := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)

	appointments, err := s.appointments.ListBetween(ctx, from, to)
	if err != nil {
		return nil, models.DayBadge{}, err
	}
	tasks, err := s.tasks.ListBetween(ctx, from, to)
	if err != nil {
		return nil, models.DayBadge{}, err
	}

	merged := MergeForDay(appointments, tasks, viewer.Email, from, s.taskDuration)
	badge := SummaryBadge(merged)
	return SortWithinDay(merged), badge, nil
}

// MonthOverview returns a badge per day of the month that has at least
// one item for the viewer, keyed by ISO date.
func (s *ScheduleService) MonthOverview(ctx context.Context, year int, month time.Month, viewer models.Identity) (map[string]models.DayBadge, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	appointments, err := s.appointments.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	overview := make(map[string]models.DayBadge)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		merged := MergeForDay(appointments, tasks, viewer.Email, day, s.taskDuration)
		if len(merged) == 0 {
			continue
		}
		overview[day.Format("2006-01-02")] = SummaryBadge(merged)
	}
	return overview, nil
}

// CreateAppointmentRequest is the payload for scheduling an event. An
// empty header falls back to DefaultAppointmentHeader.
type CreateAppointmentRequest struct {
	Header          string    `json:"header"`
	Date            time.Time `json:"date" validate:"required"`
	Time            string    `json:"time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0"`
	ContactEmail    string    `json:"contact_email" validate:"omitempty,email"`
	Notes           string    `json:"notes"`
}

func appointmentHeader(raw string) string {
	header := strings.TrimSpace(raw)
	if header == "" {
		return DefaultAppointmentHeader
	}
	return header
}

// ListAppointments returns every event, date then time ascending.
func (s *ScheduleService) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	return s.appointments.ListAll(ctx)
}

// CreateAppointment stores a new event.
func (s *ScheduleService) CreateAppointment(ctx context.Context, req CreateAppointmentRequest, createdBy string) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appt := &models.Appointment{
		Header:          appointmentHeader(req.Header),
		Date:            req.Date.UTC().Truncate(24 * time.Hour),
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		ContactEmail:    req.ContactEmail,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
	}
	return s.appointments.Create(ctx, appt)
}

// UpdateAppointment rewrites an event.
func (s *ScheduleService) UpdateAppointment(ctx context.Context, id string, req CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appt := &models.Appointment{
		ID:              id,
		Header:          appointmentHeader(req.Header),
		Date:            req.Date.UTC().Truncate(24 * time.Hour),
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		ContactEmail:    req.ContactEmail,
		Notes:           req.Notes,
	}
	stored, err := s.appointments.Update(ctx, appt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, err
	}
	return stored, nil
}

// DeleteAppointment removes an event; deleting a missing one is a no-op.
func (s *ScheduleService) DeleteAppointment(ctx context.Context, id string) error {
	affected, err := s.appointments.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Debug("delete of missing appointment ignored", zap.String("appointment_id", id))
	}
	return nil
}

// DeleteAllAppointments clears every event.
func (s *ScheduleService) DeleteAllAppointments(ctx context.Context) error {
	affected, err := s.appointments.DeleteAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("appointments cleared", zap.Int64("removed", affected))
	return nil
}

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	DueAt       time.Time           `json:"due_at" validate:"required"`
	Priority    models.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Emails      []string            `json:"emails" validate:"dive,email"`
}

// ListTasks returns every task for admins; members only see tasks that
// carry their email in the assignee list.
func (s *ScheduleService) ListTasks(ctx context.Context, viewer models.Identity) ([]models.Task, error) {
	tasks, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if viewer.Privileged {
		return tasks, nil
	}
	visible := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		emails, err := task.DecodeEmails()
		if err != nil {
			s.logger.Warn("skipping task with malformed emails",
				zap.String("task_id", task.ID),
				zap.Error(err))
			continue
		}
		for _, email := range emails {
			if email != "" && email == viewer.Email {
				visible = append(visible, task)
				break
			}
		}
	}
	return visible, nil
}

// CreateTask stores a new task.
func (s *ScheduleService) CreateTask(ctx context.Context, req CreateTaskRequest, createdBy string) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	task := &models.Task{
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt.UTC(),
		Priority:    req.Priority,
		CreatedBy:   createdBy,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if err := setTaskEmails(task, req.Emails); err != nil {
		return nil, err
	}
	return s.tasks.Create(ctx, task)
}

// UpdateTask rewrites a task.
func (s *ScheduleService) UpdateTask(ctx context.Context, id string, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	existing, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, err
	}
	task := &models.Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt.UTC(),
		Priority:    req.Priority,
		Done:        existing.Done,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if err := setTaskEmails(task, req.Emails); err != nil {
		return nil, err
	}
	stored, err := s.tasks.Update(ctx, task)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, err
	}
	return stored, nil
}

// SetTaskDone flips a task's completion flag.
func (s *ScheduleService) SetTaskDone(ctx context.Context, id string, done bool) error {
	if err := s.tasks.SetDone(ctx, id, done); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return err
	}
	return nil
}

// DeleteTask removes a task; deleting a missing one is a no-op.
func (s *ScheduleService) DeleteTask(ctx context.Context, id string) error {
	affected, err := s.tasks.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Debug("delete of missing task ignored", zap.String("task_id", id))
	}
	return nil
}

func setTaskEmails(task *models.Task, emails []string) error {
	if emails == nil {
		emails = []string{}
	}
	raw, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("encode task emails: %w", err)
	}
	task.Emails = types.JSONText(raw)
	return nil
}
