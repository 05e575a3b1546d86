package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	"github.com/clubhub-dev/clubhub-api/internal/service"
)

type meetingRepoStub struct {
	existing *models.MeetingRecord
	saved    *models.MeetingRecord
}

func (m *meetingRepoStub) ListAll(ctx context.Context) ([]models.MeetingRecord, error) {
	if m.existing == nil {
		return nil, nil
	}
	return []models.MeetingRecord{*m.existing}, nil
}

func (m *meetingRepoStub) FindByID(ctx context.Context, id string) (*models.MeetingRecord, error) {
	if m.existing != nil && m.existing.ID == id {
		return m.existing, nil
	}
	return nil, sql.ErrNoRows
}

func (m *meetingRepoStub) FindByDate(ctx context.Context, date time.Time) (*models.MeetingRecord, error) {
	if m.existing != nil {
		return m.existing, nil
	}
	return nil, sql.ErrNoRows
}

func (m *meetingRepoStub) Save(ctx context.Context, removeID *string, record *models.MeetingRecord) (*models.MeetingRecord, error) {
	stored := *record
	stored.ID = "meeting-new"
	m.saved = &stored
	return &stored, nil
}

func (m *meetingRepoStub) Delete(ctx context.Context, id string) (int64, error) {
	return 0, nil
}

type rosterRepoStub struct {
	students []models.Student
}

func (r *rosterRepoStub) ListAll(ctx context.Context) ([]models.Student, error) {
	return r.students, nil
}

func newAttendanceHandler(meetings *meetingRepoStub, roster *rosterRepoStub) *AttendanceHandler {
	svc := service.NewAttendanceService(meetings, roster, nil, nil, validator.New(), zap.NewNop(), 0)
	return NewAttendanceHandler(svc, nil)
}

func TestAttendanceHandlerSnapshotRequiresDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAttendanceHandler(&meetingRepoStub{}, &rosterRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/snapshot", nil)
	c.Request = req

	h.Snapshot(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerSnapshotSeedsRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	roster := &rosterRepoStub{students: []models.Student{
		{ID: "s1", Name: "Ada Lovelace"},
		{ID: "s2", Name: "Grace Hopper"},
	}}
	h := newAttendanceHandler(&meetingRepoStub{}, roster)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/snapshot?date=2026-03-02", nil)
	c.Request = req

	h.Snapshot(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Entries []models.AttendanceEntry `json:"entries"`
			Stats   models.SnapshotStats     `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Entries, 2)
	require.Equal(t, models.StatusAbsent, body.Data.Entries[0].Status)
	require.Equal(t, 2, body.Data.Stats.AbsentCount)
}

func TestAttendanceHandlerSaveConflictWithoutConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	meetings := &meetingRepoStub{existing: &models.MeetingRecord{
		ID:      "meeting-old",
		Date:    time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Entries: types.JSONText(`[{"name":"Ada Lovelace","status":"present"}]`),
	}}
	h := newAttendanceHandler(meetings, &rosterRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"date":"2026-03-02T00:00:00Z","entries":[{"name":"Ada Lovelace","status":"excused"}]}`
	req, _ := http.NewRequest(http.MethodPost, "/attendance/meetings", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Save(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	require.Nil(t, meetings.saved)
}

func TestAttendanceHandlerSaveConfirmQueryOverridesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	meetings := &meetingRepoStub{existing: &models.MeetingRecord{
		ID:      "meeting-old",
		Date:    time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Entries: types.JSONText(`[{"name":"Ada Lovelace","status":"present"}]`),
	}}
	h := newAttendanceHandler(meetings, &rosterRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"date":"2026-03-02T00:00:00Z","entries":[{"name":"Ada Lovelace","status":"excused"}]}`
	req, _ := http.NewRequest(http.MethodPost, "/attendance/meetings?confirm=true", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Save(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, meetings.saved)
}

func TestAttendanceHandlerSearchStudentRequiresName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAttendanceHandler(&meetingRepoStub{}, &rosterRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/search/student?name=++", nil)
	c.Request = req

	h.SearchStudent(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerExportsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newAttendanceHandler(&meetingRepoStub{}, &rosterRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/rollup/export/csv", nil)
	c.Request = req

	h.ExportCSV(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
