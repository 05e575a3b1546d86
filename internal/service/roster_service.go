package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
)

type rosterRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) (*models.Student, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// RosterService manages the club roster.
type RosterService struct {
	repo      rosterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(repo rosterRepository, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, validator: validate, logger: logger}
}

// StudentRequest is the payload for creating or updating a member.
type StudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// List returns roster members matching the filter.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one member.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return student, nil
}

// Create adds a member to the roster.
func (s *RosterService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	return s.repo.Create(ctx, &models.Student{Name: req.Name, Email: req.Email})
}

// CreateBulk adds several members at once. Every entry is validated
// before any row is written, so a bad entry rejects the whole batch.
func (s *RosterService) CreateBulk(ctx context.Context, reqs []StudentRequest) ([]models.Student, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one student is required")
	}
	for i, req := range reqs {
		if err := s.validator.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("invalid student payload at index %d", i))
		}
	}
	created := make([]models.Student, 0, len(reqs))
	for _, req := range reqs {
		stored, err := s.repo.Create(ctx, &models.Student{Name: req.Name, Email: req.Email})
		if err != nil {
			return nil, err
		}
		created = append(created, *stored)
	}
	return created, nil
}

// Update rewrites a member's name and email. Past meeting snapshots
// keep the name they were saved with.
func (s *RosterService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	stored, err := s.repo.Update(ctx, &models.Student{ID: id, Name: req.Name, Email: req.Email})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return stored, nil
}

// Delete removes a member; deleting a missing one is a no-op.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Debug("delete of missing student ignored", zap.String("student_id", id))
	}
	return nil
}
