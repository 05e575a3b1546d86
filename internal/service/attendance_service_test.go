package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
)

type fakeMeetingRepo struct {
	records   []models.MeetingRecord
	byDate    *models.MeetingRecord
	saved     *models.MeetingRecord
	savedWith *string
	deleted   int64
}

func (f *fakeMeetingRepo) ListAll(context.Context) ([]models.MeetingRecord, error) {
	return f.records, nil
}

func (f *fakeMeetingRepo) FindByID(_ context.Context, id string) (*models.MeetingRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMeetingRepo) FindByDate(context.Context, time.Time) (*models.MeetingRecord, error) {
	if f.byDate == nil {
		return nil, sql.ErrNoRows
	}
	return f.byDate, nil
}

func (f *fakeMeetingRepo) Save(_ context.Context, removeID *string, record *models.MeetingRecord) (*models.MeetingRecord, error) {
	f.saved = record
	f.savedWith = removeID
	stored := *record
	if stored.ID == "" {
		stored.ID = "stored"
	}
	return &stored, nil
}

func (f *fakeMeetingRepo) Delete(context.Context, string) (int64, error) {
	return f.deleted, nil
}

type fakeRoster struct {
	students []models.Student
}

func (f *fakeRoster) ListAll(context.Context) ([]models.Student, error) {
	return f.students, nil
}

func newAttendanceService(meetings *fakeMeetingRepo, roster *fakeRoster) *AttendanceService {
	return NewAttendanceService(meetings, roster, nil, nil, nil, zap.NewNop(), 0)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStatusCycleReturnsToStart(t *testing.T) {
	for _, status := range []models.AttendanceStatus{models.StatusAbsent, models.StatusPresent, models.StatusExcused} {
		cycled := status.Next().Next().Next()
		assert.Equal(t, status, cycled)
		assert.True(t, status.Next().Valid())
	}
	assert.Equal(t, models.StatusAbsent, models.AttendanceStatus("bogus").Next())
}

func TestBuildWorkingSnapshotDefaultsToAbsent(t *testing.T) {
	roster := []models.Student{{Name: "Ada Lovelace"}, {Name: "Grace Hopper"}}

	snapshot := BuildWorkingSnapshot(roster, nil)
	require.Len(t, snapshot, 2)
	for _, entry := range snapshot {
		assert.Equal(t, models.StatusAbsent, entry.Status)
		assert.False(t, entry.Present)
	}
}

func TestBuildWorkingSnapshotCarriesOverByExactName(t *testing.T) {
	roster := []models.Student{{Name: "Ada Lovelace"}, {Name: "Grace Hopper"}}
	prior := []models.AttendanceEntry{
		{Name: "Ada Lovelace", Status: models.StatusExcused},
		{Name: "grace hopper", Status: models.StatusPresent, Present: true},
	}

	snapshot := BuildWorkingSnapshot(roster, prior)
	require.Len(t, snapshot, 2)
	assert.Equal(t, models.StatusExcused, snapshot[0].Status)
	// Case differs, so the prior mark does not carry over.
	assert.Equal(t, models.StatusAbsent, snapshot[1].Status)
}

func TestBuildWorkingSnapshotLegacyPresentFlag(t *testing.T) {
	roster := []models.Student{{Name: "Ada Lovelace"}}
	prior := []models.AttendanceEntry{{Name: "Ada Lovelace", Present: true}}

	snapshot := BuildWorkingSnapshot(roster, prior)
	require.Len(t, snapshot, 1)
	assert.Equal(t, models.StatusPresent, snapshot[0].Status)
	assert.True(t, snapshot[0].Present)
}

func TestComputeRollupWeightsAndPercentages(t *testing.T) {
	roster := []models.Student{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	meetings := []DecodedMeeting{
		{Date: day(2024, 3, 4), Entries: []models.AttendanceEntry{
			{Name: "A", Status: models.StatusPresent},
			{Name: "B", Status: models.StatusPresent},
			{Name: "C", Status: models.StatusExcused},
		}},
		{Date: day(2024, 3, 11), Entries: []models.AttendanceEntry{
			{Name: "A", Status: models.StatusPresent},
			{Name: "B", Status: models.StatusExcused},
			{Name: "C", Status: models.StatusAbsent},
		}},
	}

	rollup := ComputeRollup(roster, meetings, []time.Time{day(2024, 3, 4), day(2024, 3, 11)})
	require.Len(t, rollup.Students, 3)
	assert.Equal(t, 2, rollup.TotalMeetings)

	assert.Equal(t, 2.0, rollup.Students[0].AttendedWeight)
	assert.Equal(t, 100, rollup.Students[0].Percentage)

	assert.Equal(t, 1.5, rollup.Students[1].AttendedWeight)
	assert.Equal(t, 75, rollup.Students[1].Percentage)

	assert.Equal(t, 0.5, rollup.Students[2].AttendedWeight)
	assert.Equal(t, 25, rollup.Students[2].Percentage)
}

func TestComputeRollupNoMeetings(t *testing.T) {
	rollup := ComputeRollup([]models.Student{{Name: "A"}}, nil, nil)
	assert.Equal(t, 0, rollup.TotalMeetings)
	require.Len(t, rollup.Students, 1)
	assert.Equal(t, 0, rollup.Students[0].Percentage)
	assert.Zero(t, rollup.Students[0].AttendedWeight)
}

func TestComputeRollupCountsDistinctDates(t *testing.T) {
	roster := []models.Student{{Name: "A"}}
	// Two records saved for the same calendar date count once.
	meetings := []DecodedMeeting{
		{Date: day(2025, 1, 1), Entries: []models.AttendanceEntry{{Name: "A", Status: models.StatusPresent}}},
		{Date: time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC), Entries: []models.AttendanceEntry{{Name: "A", Status: models.StatusAbsent}}},
	}
	dates := []time.Time{meetings[0].Date, meetings[1].Date}

	rollup := ComputeRollup(roster, meetings, dates)
	assert.Equal(t, 1, rollup.TotalMeetings)
	require.Len(t, rollup.Students, 1)
	assert.Equal(t, 100, rollup.Students[0].Percentage)
}

func TestComputeRollupPercentageBounds(t *testing.T) {
	roster := []models.Student{{Name: "A"}}
	meetings := []DecodedMeeting{}
	for i := 0; i < 7; i++ {
		status := models.StatusExcused
		if i%2 == 0 {
			status = models.StatusPresent
		}
		meetings = append(meetings, DecodedMeeting{
			Date:    day(2024, 3, 1+i),
			Entries: []models.AttendanceEntry{{Name: "A", Status: status}},
		})
	}

	dates := make([]time.Time, 0, len(meetings))
	for _, meeting := range meetings {
		dates = append(dates, meeting.Date)
	}

	rollup := ComputeRollup(roster, meetings, dates)
	pct := rollup.Students[0].Percentage
	assert.GreaterOrEqual(t, pct, 0)
	assert.LessOrEqual(t, pct, 100)
}

func TestComputeSnapshotStatsEmptyRoster(t *testing.T) {
	stats := ComputeSnapshotStats(nil)
	assert.Zero(t, stats.PresentPct)
	assert.Zero(t, stats.ExcusedPct)
	assert.Zero(t, stats.AbsentPct)
}

func TestComputeSnapshotStatsRoundsIndependently(t *testing.T) {
	entries := []models.AttendanceEntry{
		{Name: "A", Status: models.StatusPresent},
		{Name: "B", Status: models.StatusExcused},
		{Name: "C", Status: models.StatusAbsent},
	}

	stats := ComputeSnapshotStats(entries)
	assert.Equal(t, 3, stats.RosterSize)
	assert.Equal(t, 33, stats.PresentPct)
	assert.Equal(t, 33, stats.ExcusedPct)
	assert.Equal(t, 33, stats.AbsentPct)
}

func TestSearchByStudentIsExactAndNeverErrors(t *testing.T) {
	meetings := []DecodedMeeting{
		{Date: day(2024, 3, 4), Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusPresent}}},
		{Date: day(2024, 3, 11), Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusExcused}}},
	}

	hits := SearchByStudent(meetings, "Ada Lovelace")
	require.Len(t, hits, 2)
	assert.Equal(t, models.StatusPresent, hits[0].Status)

	assert.Empty(t, SearchByStudent(meetings, "ada lovelace"))
	assert.Empty(t, SearchByStudent(meetings, "Nobody"))
}

func TestSearchByDateMatchesCalendarDateOnly(t *testing.T) {
	meetings := []DecodedMeeting{
		{Date: day(2024, 3, 4), Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusPresent}}},
	}

	// Same day, different time of day.
	hits := SearchByDate(meetings, time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC))
	require.Len(t, hits, 1)
	assert.Equal(t, "Ada Lovelace", hits[0].Name)

	assert.Empty(t, SearchByDate(meetings, day(2024, 3, 5)))
}

func TestSaveMeetingRequiresConfirmationToReplace(t *testing.T) {
	existing := models.MeetingRecord{ID: "old", Date: day(2024, 3, 4)}
	meetings := &fakeMeetingRepo{byDate: &existing}
	svc := newAttendanceService(meetings, &fakeRoster{})

	req := SaveMeetingRequest{
		Date:    day(2024, 3, 4),
		Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusPresent}},
	}

	_, err := svc.SaveMeeting(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Nil(t, meetings.saved)
}

func TestSaveMeetingConfirmedReplacesInsteadOfDuplicating(t *testing.T) {
	existing := models.MeetingRecord{ID: "old", Date: day(2024, 3, 4)}
	meetings := &fakeMeetingRepo{byDate: &existing}
	svc := newAttendanceService(meetings, &fakeRoster{})

	req := SaveMeetingRequest{
		Date:    day(2024, 3, 4),
		Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusPresent}},
		Confirm: true,
	}

	stored, err := svc.SaveMeeting(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, meetings.savedWith)
	assert.Equal(t, "old", *meetings.savedWith)
}

func TestSaveMeetingNewDateNeedsNoConfirmation(t *testing.T) {
	meetings := &fakeMeetingRepo{}
	svc := newAttendanceService(meetings, &fakeRoster{})

	req := SaveMeetingRequest{
		Date:    day(2024, 3, 4),
		Entries: []models.AttendanceEntry{{Name: "Ada Lovelace", Status: models.StatusExcused}},
	}

	stored, err := svc.SaveMeeting(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, meetings.savedWith)

	entries, err := stored.DecodeEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusExcused, entries[0].Status)
	assert.False(t, entries[0].Present)
}

func TestRollupCountsMalformedRecordDates(t *testing.T) {
	good := models.MeetingRecord{ID: "good", Date: day(2024, 3, 4)}
	require.NoError(t, good.SetEntries([]models.AttendanceEntry{{Name: "A", Status: models.StatusPresent}}))
	bad := models.MeetingRecord{ID: "bad", Date: day(2024, 3, 11), Entries: types.JSONText(`{"oops":true}`)}

	meetings := &fakeMeetingRepo{records: []models.MeetingRecord{good, bad}}
	svc := newAttendanceService(meetings, &fakeRoster{students: []models.Student{{Name: "A"}}})

	// The unreadable record contributes no statuses but its date still
	// counts toward the meeting total.
	rollup, err := svc.Rollup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rollup.TotalMeetings)
	require.Len(t, rollup.Students, 1)
	assert.Equal(t, 1.0, rollup.Students[0].AttendedWeight)
	assert.Equal(t, 50, rollup.Students[0].Percentage)
}

func TestDecodeEntriesAcceptsDoubleEncodedString(t *testing.T) {
	record := models.MeetingRecord{
		Entries: types.JSONText(`"[{\"name\":\"Ada Lovelace\",\"status\":\"present\",\"present\":true}]"`),
	}
	entries, err := record.DecodeEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusPresent, entries[0].Status)
}
