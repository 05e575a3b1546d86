package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubhub-dev/clubhub-api/internal/models"
)

// AppointmentRepository handles persistence for scheduled events.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListBetween returns appointments whose date falls in [from, to].
func (r *AppointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	const query = `SELECT id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at
FROM appointments WHERE event_date >= $1 AND event_date <= $2
ORDER BY event_date ASC, event_time ASC`
	var rows []models.Appointment
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return rows, nil
}

// ListAll returns every appointment, date then time ascending.
func (r *AppointmentRepository) ListAll(ctx context.Context) ([]models.Appointment, error) {
	const query = `SELECT id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at
FROM appointments ORDER BY event_date ASC, event_time ASC`
	var rows []models.Appointment
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all appointments: %w", err)
	}
	return rows, nil
}

// FindByID returns one appointment.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	const query = `SELECT id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at
FROM appointments WHERE id = $1 LIMIT 1`
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment by id: %w", err)
	}
	return &appt, nil
}

// Create inserts an appointment.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	now := time.Now().UTC()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now
	const query = `INSERT INTO appointments (id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at`
	var stored models.Appointment
	if err := r.db.GetContext(ctx, &stored, query,
		appt.ID, appt.Header, appt.Date, appt.Time, appt.DurationMinutes, appt.ContactEmail, appt.Notes, appt.CreatedBy, appt.CreatedAt, appt.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return &stored, nil
}

// Update rewrites an appointment.
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	appt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET header = $2, event_date = $3, event_time = $4, duration_minutes = $5, contact_email = $6, notes = $7, updated_at = $8
WHERE id = $1
RETURNING id, header, event_date, event_time, duration_minutes, contact_email, notes, created_by, created_at, updated_at`
	var stored models.Appointment
	if err := r.db.GetContext(ctx, &stored, query,
		appt.ID, appt.Header, appt.Date, appt.Time, appt.DurationMinutes, appt.ContactEmail, appt.Notes, appt.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return &stored, nil
}

// Delete removes an appointment and reports affected rows.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM appointments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete appointment rows affected: %w", err)
	}
	return affected, nil
}

// DeleteAll clears the appointments table and reports affected rows.
func (r *AppointmentRepository) DeleteAll(ctx context.Context) (int64, error) {
	const query = `DELETE FROM appointments`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete all appointments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all appointments rows affected: %w", err)
	}
	return affected, nil
}
