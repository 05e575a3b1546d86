package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubhub-dev/clubhub-api/internal/models"
)

func newPollMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPollRepositoryFindByIDDecodesLegacyShape(t *testing.T) {
	db, mock, cleanup := newPollMock(t)
	defer cleanup()
	repo := NewPollRepository(db)

	// Questions double-encoded as a JSON string, the shape older rows carry.
	questions := []byte(`"[{\"text\":\"Pick a day\",\"type\":\"multiple-choice\",\"options\":[\"Mon\",\"Tue\"]}]"`)
	rows := sqlmock.NewRows([]string{"id", "title", "description", "poll_type", "questions", "responses", "created_by", "created_at", "updated_at"}).
		AddRow("p1", "Meetup day", "", "single", questions, []byte(`[]`), "u1", time.Now(), time.Now())
	mock.ExpectQuery("FROM polls WHERE id").
		WithArgs("p1").
		WillReturnRows(rows)

	poll, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)

	decoded, err := poll.DecodeQuestions()
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, models.QuestionMultipleChoice, decoded[0].Type)
	assert.Equal(t, []string{"Mon", "Tue"}, decoded[0].Options)
}

func TestPollRepositoryCreateDefaultsResponses(t *testing.T) {
	db, mock, cleanup := newPollMock(t)
	defer cleanup()
	repo := NewPollRepository(db)

	poll := &models.Poll{Title: "Meetup day", Type: models.PollSingle, CreatedBy: "u1"}
	require.NoError(t, poll.SetQuestions([]models.Question{{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}}}))

	mock.ExpectQuery("INSERT INTO polls").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "poll_type", "questions", "responses", "created_by", "created_at", "updated_at"}).
			AddRow("p1", "Meetup day", "", "single", []byte(poll.Questions), []byte(`[]`), "u1", time.Now(), time.Now()))

	stored, err := repo.Create(context.Background(), poll)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored.ID)

	responses, err := stored.DecodeResponses()
	require.NoError(t, err)
	assert.Empty(t, responses)
}

func TestPollRepositoryUpdateResponses(t *testing.T) {
	db, mock, cleanup := newPollMock(t)
	defer cleanup()
	repo := NewPollRepository(db)

	payload := types.JSONText(`[{"userId":"u2","userName":"Ada","userEmail":"ada@club.test","answers":{"0":1},"timestamp":"2024-03-04T10:00:00Z"}]`)
	mock.ExpectQuery("UPDATE polls SET responses").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "poll_type", "questions", "responses", "created_by", "created_at", "updated_at"}).
			AddRow("p1", "Meetup day", "", "single", []byte(`[]`), []byte(payload), "u1", time.Now(), time.Now()))

	stored, err := repo.UpdateResponses(context.Background(), "p1", payload)
	require.NoError(t, err)

	responses, err := stored.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "u2", responses[0].UserID)
	require.True(t, responses[0].Answers[0].IsChoice())
	assert.Equal(t, 1, *responses[0].Answers[0].OptionIndex)
}
