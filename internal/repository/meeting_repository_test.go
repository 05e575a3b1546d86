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

func newMeetingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMeetingRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newMeetingMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	entries := []byte(`[{"name":"Ada Lovelace","status":"present","present":true}]`)
	rows := sqlmock.NewRows([]string{"id", "meeting_date", "entries", "created_at", "updated_at"}).
		AddRow("m1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), entries, time.Now(), time.Now())
	mock.ExpectQuery("FROM meetings ORDER BY meeting_date DESC").
		WillReturnRows(rows)

	meetings, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, meetings, 1)

	decoded, err := meetings[0].DecodeEntries()
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, models.StatusPresent, decoded[0].Status)
}

func TestMeetingRepositoryFindByDateNotFound(t *testing.T) {
	db, mock, cleanup := newMeetingMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectQuery("FROM meetings WHERE meeting_date").
		WillReturnError(sql.ErrNoRows)

	record, err := repo.FindByDate(context.Background(), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, record)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMeetingRepositorySaveReplacesExistingRow(t *testing.T) {
	db, mock, cleanup := newMeetingMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	record := &models.MeetingRecord{Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, record.SetEntries([]models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusPresent, Present: true}}))
	removeID := "old"

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM meetings").
		WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO meetings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "meeting_date", "entries", "created_at", "updated_at"}).
			AddRow("m2", record.Date, []byte(record.Entries), time.Now(), time.Now()))
	mock.ExpectCommit()

	stored, err := repo.Save(context.Background(), &removeID, record)
	require.NoError(t, err)
	assert.Equal(t, "m2", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositorySaveWithoutReplacement(t *testing.T) {
	db, mock, cleanup := newMeetingMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	record := &models.MeetingRecord{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, record.SetEntries(nil))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO meetings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "meeting_date", "entries", "created_at", "updated_at"}).
			AddRow("m3", record.Date, []byte("[]"), time.Now(), time.Now()))
	mock.ExpectCommit()

	stored, err := repo.Save(context.Background(), nil, record)
	require.NoError(t, err)
	assert.Equal(t, "m3", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
