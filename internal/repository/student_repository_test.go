package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubhub-dev/clubhub-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
		AddRow("1", "Ada Lovelace", "ada@club.test", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, name, email, created_at, updated_at\nFROM students WHERE 1=1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListSearchFilter(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students WHERE 1=1 AND").
		WithArgs("%ada%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%ada%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "ada"})
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students WHERE email").
		WithArgs("missing@club.test").
		WillReturnError(sql.ErrNoRows)

	student, err := repo.FindByEmail(context.Background(), "missing@club.test")
	assert.Nil(t, student)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "Grace Hopper", "grace@club.test", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at", "updated_at"}).
			AddRow("2", "Grace Hopper", "grace@club.test", time.Now(), time.Now()))

	stored, err := repo.Create(context.Background(), &models.Student{Name: "Grace Hopper", Email: "grace@club.test"})
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", stored.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteReportsAffected(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Delete(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, affected)
}
