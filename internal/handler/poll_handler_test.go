package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/middleware"
	"github.com/clubhub-dev/clubhub-api/internal/models"
	"github.com/clubhub-dev/clubhub-api/internal/service"
)

type pollRepoStub struct {
	poll             *models.Poll
	responsesUpdated bool
	updatedResponses types.JSONText
}

func (p *pollRepoStub) ListAll(ctx context.Context) ([]models.Poll, error) {
	if p.poll == nil {
		return nil, nil
	}
	return []models.Poll{*p.poll}, nil
}

func (p *pollRepoStub) FindByID(ctx context.Context, id string) (*models.Poll, error) {
	if p.poll != nil && p.poll.ID == id {
		return p.poll, nil
	}
	return nil, sql.ErrNoRows
}

func (p *pollRepoStub) Create(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	return poll, nil
}

func (p *pollRepoStub) Update(ctx context.Context, poll *models.Poll) (*models.Poll, error) {
	return poll, nil
}

func (p *pollRepoStub) UpdateResponses(ctx context.Context, id string, responses types.JSONText) (*models.Poll, error) {
	p.responsesUpdated = true
	p.updatedResponses = responses
	stored := *p.poll
	stored.Responses = responses
	return &stored, nil
}

func (p *pollRepoStub) Delete(ctx context.Context, id string) (int64, error) {
	return 0, nil
}

type voterRosterStub struct {
	emails map[string]bool
}

func (r *voterRosterStub) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if r.emails[email] {
		return &models.Student{ID: "s1", Email: email}, nil
	}
	return nil, sql.ErrNoRows
}

func newPollHandler(repo *pollRepoStub, roster *voterRosterStub) *PollHandler {
	svc := service.NewPollService(repo, roster, nil, nil, zap.NewNop(), 0)
	return NewPollHandler(svc)
}

func seedPollRecord() *models.Poll {
	return &models.Poll{
		ID:        "poll-1",
		Title:     "Meeting day",
		Type:      models.PollSingle,
		Questions: types.JSONText(`[{"text":"Which day?","type":"multiple-choice","options":["Monday","Friday"]}]`),
		Responses: types.JSONText(`[]`),
	}
}

func TestPollHandlerVoteRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newPollHandler(&pollRepoStub{poll: seedPollRecord()}, &voterRosterStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/polls/poll-1/votes", bytes.NewBufferString(`{"answers":{"0":0}}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "poll-1"}}

	h.Vote(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPollHandlerVoteRejectsNonRosterEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &pollRepoStub{poll: seedPollRecord()}
	h := newPollHandler(repo, &voterRosterStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/polls/poll-1/votes", bytes.NewBufferString(`{"answers":{"0":0}}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "poll-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "guest@example.com", FullName: "Guest", Role: models.RoleMember})

	h.Vote(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.False(t, repo.responsesUpdated)
}

func TestPollHandlerVoteStoresResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &pollRepoStub{poll: seedPollRecord()}
	roster := &voterRosterStub{emails: map[string]bool{"ada@example.com": true}}
	h := newPollHandler(repo, roster)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/polls/poll-1/votes", bytes.NewBufferString(`{"answers":{"0":1}}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "poll-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "ada@example.com", FullName: "Ada Lovelace", Role: models.RoleMember})

	h.Vote(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, repo.responsesUpdated)
	require.Contains(t, string(repo.updatedResponses), `"ada@example.com"`)
}

func TestPollHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newPollHandler(&pollRepoStub{}, &voterRosterStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"title":"Meeting day","questions":[{"text":"Which day?","type":"multiple-choice","options":["Monday","Friday"]}]}`
	req, _ := http.NewRequest(http.MethodPost, "/polls", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPollHandlerGetMissingPoll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newPollHandler(&pollRepoStub{}, &voterRosterStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/polls/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
