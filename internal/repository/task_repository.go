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

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListAll returns every task ordered by due timestamp.
func (r *TaskRepository) ListAll(ctx context.Context) ([]models.Task, error) {
	const query = `SELECT id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at
FROM tasks ORDER BY due_at ASC`
	var rows []models.Task
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return rows, nil
}

// ListBetween returns tasks due in [from, to].
func (r *TaskRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	const query = `SELECT id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at
FROM tasks WHERE due_at >= $1 AND due_at <= $2
ORDER BY due_at ASC`
	var rows []models.Task
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list tasks between: %w", err)
	}
	return rows, nil
}

// FindByID returns one task.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at
FROM tasks WHERE id = $1 LIMIT 1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	return &task, nil
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	now := time.Now().UTC()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = now
	task.UpdatedAt = now
	if len(task.Emails) == 0 {
		task.Emails = types.JSONText("[]")
	}
	const query = `INSERT INTO tasks (id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at`
	var stored models.Task
	if err := r.db.GetContext(ctx, &stored, query,
		task.ID, task.Title, task.Description, task.DueAt, task.Priority, task.Done, task.Emails, task.CreatedBy, task.CreatedAt, task.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &stored, nil
}

// Update rewrites a task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) (*models.Task, error) {
	task.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET title = $2, description = $3, due_at = $4, priority = $5, done = $6, emails = $7, updated_at = $8
WHERE id = $1
RETURNING id, title, description, due_at, priority, done, emails, created_by, created_at, updated_at`
	var stored models.Task
	if err := r.db.GetContext(ctx, &stored, query,
		task.ID, task.Title, task.Description, task.DueAt, task.Priority, task.Done, task.Emails, task.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &stored, nil
}

// SetDone flips a task's completion flag.
func (r *TaskRepository) SetDone(ctx context.Context, id string, done bool) error {
	const query = `UPDATE tasks SET done = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, done, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set task done: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set task done rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a task and reports affected rows.
func (r *TaskRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM tasks WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete task rows affected: %w", err)
	}
	return affected, nil
}
