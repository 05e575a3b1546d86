package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/clubhub-dev/clubhub-api/internal/models"
)

// PollRepository handles persistence for polls.
type PollRepository struct {
	db *sqlx.DB
}

// NewPollRepository constructs the repository.
func NewPollRepository(db *sqlx.DB) *PollRepository {
	return &PollRepository{db: db}
}

// ListAll returns every poll, newest first.
func (r *PollRepository) ListAll(ctx context.Context) ([]models.Poll, error) {
	const query = `SELECT id, title, description, poll_type, questions, responses, created_by, created_at, updated_at
FROM polls ORDER BY created_at DESC`
	var rows []models.Poll
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	return rows, nil
}

// FindByID returns one poll.
func (r *PollRepository) FindByID(ctx context.Context, id string) (*models.Poll, error) {
	const query = `SELECT id, title, description, poll_type, questions, responses, created_by, created_at, updated_at
FROM polls WHERE id = $1 LIMIT 1`
	var poll models.Poll
	if err := r.db.GetContext(ctx, &poll, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find poll by id: %w", err)
	}
	return &poll, nil
}

// Create inserts a poll with an empty response list.
func (r *PollRepository) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	now := time.Now().UTC()
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	poll.CreatedAt = now
	poll.UpdatedAt = now
	if len(poll.Responses) == 0 {
		poll.Responses = types.JSONText("[]")
	}
	const query = `INSERT INTO polls (id, title, description, poll_type, questions, responses, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, title, description, poll_type, questions, responses, created_by, created_at, updated_at`
	var stored models.Poll
	if err := r.db.GetContext(ctx, &stored, query,
		poll.ID, poll.Title, poll.Description, poll.Type, poll.Questions, poll.Responses, poll.CreatedBy, poll.CreatedAt, poll.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	return &stored, nil
}

// Update rewrites a poll's editable fields, leaving responses alone.
func (r *PollRepository) Update(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	poll.UpdatedAt = time.Now().UTC()
	const query = `UPDATE polls SET title = $2, description = $3, poll_type = $4, questions = $5, updated_at = $6
WHERE id = $1
RETURNING id, title, description, poll_type, questions, responses, created_by, created_at, updated_at`
	var stored models.Poll
	if err := r.db.GetContext(ctx, &stored, query,
		poll.ID, poll.Title, poll.Description, poll.Type, poll.Questions, poll.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update poll: %w", err)
	}
	return &stored, nil
}

// UpdateResponses replaces a poll's response list.
func (r *PollRepository) UpdateResponses(ctx context.Context, id string, responses types.JSONText) (*models.Poll, error) {
	const query = `UPDATE polls SET responses = $2, updated_at = $3
WHERE id = $1
RETURNING id, title, description, poll_type, questions, responses, created_by, created_at, updated_at`
	var stored models.Poll
	if err := r.db.GetContext(ctx, &stored, query, id, responses, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update poll responses: %w", err)
	}
	return &stored, nil
}

// Delete removes a poll and reports affected rows.
func (r *PollRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM polls WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete poll: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete poll rows affected: %w", err)
	}
	return affected, nil
}
