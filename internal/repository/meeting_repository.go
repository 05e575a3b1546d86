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

// MeetingRepository handles persistence for saved meeting records.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// ListAll returns every saved meeting, newest first. The history view
// and the rollup both read through this method.
func (r *MeetingRepository) ListAll(ctx context.Context) ([]models.MeetingRecord, error) {
	const query = `SELECT id, meeting_date, entries, created_at, updated_at
FROM meetings ORDER BY meeting_date DESC, created_at DESC`
	var rows []models.MeetingRecord
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return rows, nil
}

// FindByID returns one saved meeting.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.MeetingRecord, error) {
	const query = `SELECT id, meeting_date, entries, created_at, updated_at FROM meetings WHERE id = $1 LIMIT 1`
	var record models.MeetingRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}
	return &record, nil
}

// FindByDate returns the meeting saved for the given calendar date, if
// any. At most one row exists per date.
func (r *MeetingRepository) FindByDate(ctx context.Context, date time.Time) (*models.MeetingRecord, error) {
	const query = `SELECT id, meeting_date, entries, created_at, updated_at
FROM meetings WHERE meeting_date = $1 LIMIT 1`
	var record models.MeetingRecord
	if err := r.db.GetContext(ctx, &record, query, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by date: %w", err)
	}
	return &record, nil
}

// Save stores a meeting record, removing the replaced row in the same
// transaction when a plan named one.
func (r *MeetingRepository) Save(ctx context.Context, removeID *string, record *models.MeetingRecord) (*models.MeetingRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save meeting: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if removeID != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, *removeID); err != nil {
			return nil, fmt.Errorf("remove replaced meeting: %w", err)
		}
	}

	const query = `INSERT INTO meetings (id, meeting_date, entries, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, meeting_date, entries, created_at, updated_at`
	var stored models.MeetingRecord
	if err := tx.GetContext(ctx, &stored, query, record.ID, record.Date, record.Entries, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save meeting: %w", err)
	}
	commit = true
	return &stored, nil
}

// Delete removes a saved meeting and reports affected rows.
func (r *MeetingRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM meetings WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete meeting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete meeting rows affected: %w", err)
	}
	return affected, nil
}
