package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubhub-dev/clubhub-api/internal/models"
)

// StudentRepository provides database access to the club roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns roster members matching the filter with a total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"name":       "name",
		"email":      "email",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, email, created_at, updated_at
FROM students WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, whereClause, sortColumn, order, size, offset)

	var rows []models.Student
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return rows, total, nil
}

// ListAll returns the whole roster ordered by name. Aggregations read
// the roster through this method.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT id, name, email, created_at, updated_at FROM students ORDER BY name ASC`
	var rows []models.Student
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return rows, nil
}

// FindByID returns one roster member.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, name, email, created_at, updated_at FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByEmail returns the roster member with the given email.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT id, name, email, created_at, updated_at FROM students WHERE email = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by email: %w", err)
	}
	return &student, nil
}

// Create inserts a roster member.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (*models.Student, error) {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, email, created_at, updated_at`
	var stored models.Student
	if err := r.db.GetContext(ctx, &stored, query, student.ID, student.Name, student.Email, student.CreatedAt, student.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return &stored, nil
}

// Update modifies a roster member's name and email.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) (*models.Student, error) {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = $2, email = $3, updated_at = $4
WHERE id = $1
RETURNING id, name, email, created_at, updated_at`
	var stored models.Student
	if err := r.db.GetContext(ctx, &stored, query, student.ID, student.Name, student.Email, student.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update student: %w", err)
	}
	return &stored, nil
}

// Delete removes a roster member. It reports how many rows were
// affected so callers can distinguish a no-op.
func (r *StudentRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM students WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student rows affected: %w", err)
	}
	return affected, nil
}
