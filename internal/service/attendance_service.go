package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
)

const (
	cacheKeyRollup         = "attendance:rollup"
	cachePatternAttendance = "attendance:*"
)

type meetingRepository interface {
	ListAll(ctx context.Context) ([]models.MeetingRecord, error)
	FindByID(ctx context.Context, id string) (*models.MeetingRecord, error)
	FindByDate(ctx context.Context, date time.Time) (*models.MeetingRecord, error)
	Save(ctx context.Context, removeID *string, record *models.MeetingRecord) (*models.MeetingRecord, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type rosterReader interface {
	ListAll(ctx context.Context) ([]models.Student, error)
}

// AttendanceService owns the meeting ledger: working snapshots, saves,
// history, searches and the per-student rollup.
type AttendanceService struct {
	meetings  meetingRepository
	roster    rosterReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewAttendanceService constructs the service.
func NewAttendanceService(meetings meetingRepository, roster rosterReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		meetings:  meetings,
		roster:    roster,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// MatchesEntry is the single place that decides whether a stored entry
// belongs to a roster member. Matching is by exact stored name; renamed
// members intentionally stop matching their old history.
func MatchesEntry(entryName, rosterName string) bool {
	return entryName == rosterName
}

// SameCalendarDay reports whether two timestamps fall on the same UTC
// calendar date, ignoring the time of day.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// BuildWorkingSnapshot produces the editable per-member list for a
// meeting: one entry per roster member in roster order, defaulting to
// absent, carrying over statuses from prior where the names match.
func BuildWorkingSnapshot(roster []models.Student, prior []models.AttendanceEntry) []models.AttendanceEntry {
	snapshot := make([]models.AttendanceEntry, 0, len(roster))
	for _, student := range roster {
		entry := models.AttendanceEntry{Name: student.Name, Status: models.StatusAbsent}
		for _, old := range prior {
			if MatchesEntry(old.Name, student.Name) {
				entry.Status = old.EffectiveStatus()
				break
			}
		}
		entry.Present = entry.Status == models.StatusPresent
		snapshot = append(snapshot, entry)
	}
	return snapshot
}

// PlanMeetingSave decides how to store a snapshot for a date. When an
// existing record holds the same date the plan names it for removal and
// flags that the caller must confirm the replacement.
func PlanMeetingSave(existing *models.MeetingRecord, date time.Time, entries []models.AttendanceEntry) (models.MeetingSavePlan, error) {
	normalized := make([]models.AttendanceEntry, len(entries))
	for i, entry := range entries {
		status := entry.EffectiveStatus()
		normalized[i] = models.AttendanceEntry{
			Name:    entry.Name,
			Status:  status,
			Present: status == models.StatusPresent,
		}
	}
	record := models.MeetingRecord{Date: date.UTC().Truncate(24 * time.Hour)}
	if err := record.SetEntries(normalized); err != nil {
		return models.MeetingSavePlan{}, err
	}
	plan := models.MeetingSavePlan{Record: record}
	if existing != nil {
		id := existing.ID
		plan.RemoveID = &id
		plan.RequiresConfirm = true
	}
	return plan, nil
}

// ComputeSnapshotStats summarises one snapshot. Each percentage is
// rounded independently against the roster size, so the three values
// may not sum to exactly 100.
func ComputeSnapshotStats(entries []models.AttendanceEntry) models.SnapshotStats {
	stats := models.SnapshotStats{RosterSize: len(entries)}
	for _, entry := range entries {
		switch entry.EffectiveStatus() {
		case models.StatusPresent:
			stats.PresentCount++
		case models.StatusExcused:
			stats.ExcusedCount++
		default:
			stats.AbsentCount++
		}
	}
	if stats.RosterSize == 0 {
		return stats
	}
	pct := func(count int) int {
		return int(math.Round(float64(count) / float64(stats.RosterSize) * 100))
	}
	stats.PresentPct = pct(stats.PresentCount)
	stats.ExcusedPct = pct(stats.ExcusedCount)
	stats.AbsentPct = pct(stats.AbsentCount)
	return stats
}

// DecodedMeeting pairs a stored meeting with its decoded entries.
type DecodedMeeting struct {
	ID      string
	Date    time.Time
	Entries []models.AttendanceEntry
}

// ComputeRollup aggregates attendance per roster member across all
// decoded meetings. Present counts 1, excused counts 0.5, absent 0.
// The meeting total is the number of distinct calendar dates in
// allDates, which covers every stored record, including those whose
// entries could not be decoded. With no dates every percentage is 0.
func ComputeRollup(roster []models.Student, meetings []DecodedMeeting, allDates []time.Time) models.AttendanceRollup {
	seen := make(map[string]struct{}, len(allDates))
	for _, date := range allDates {
		seen[date.UTC().Format("2006-01-02")] = struct{}{}
	}
	rollup := models.AttendanceRollup{
		Students:      make([]models.StudentRollup, 0, len(roster)),
		TotalMeetings: len(seen),
	}
	for _, student := range roster {
		var weight float64
		for _, meeting := range meetings {
			for _, entry := range meeting.Entries {
				if !MatchesEntry(entry.Name, student.Name) {
					continue
				}
				switch entry.EffectiveStatus() {
				case models.StatusPresent:
					weight++
				case models.StatusExcused:
					weight += 0.5
				}
				break
			}
		}
		row := models.StudentRollup{
			Name:           student.Name,
			AttendedWeight: weight,
			TotalMeetings:  rollup.TotalMeetings,
		}
		if rollup.TotalMeetings > 0 {
			row.Percentage = int(math.Round(weight / float64(rollup.TotalMeetings) * 100))
		}
		rollup.Students = append(rollup.Students, row)
	}
	return rollup
}

// SearchByStudent returns every dated status recorded under the exact
// stored name, newest meeting first per the input ordering. A name with
// no history yields an empty slice, never an error.
func SearchByStudent(meetings []DecodedMeeting, name string) []models.StudentHistoryEntry {
	results := make([]models.StudentHistoryEntry, 0)
	for _, meeting := range meetings {
		for _, entry := range meeting.Entries {
			if MatchesEntry(entry.Name, name) {
				results = append(results, models.StudentHistoryEntry{Date: meeting.Date, Status: entry.EffectiveStatus()})
				break
			}
		}
	}
	return results
}

// SearchByDate returns the per-member statuses of the meeting recorded
// on the given calendar date. A date with no meeting yields an empty
// slice, never an error.
func SearchByDate(meetings []DecodedMeeting, date time.Time) []models.DateEntry {
	results := make([]models.DateEntry, 0)
	for _, meeting := range meetings {
		if !SameCalendarDay(meeting.Date, date) {
			continue
		}
		for _, entry := range meeting.Entries {
			results = append(results, models.DateEntry{Name: entry.Name, Status: entry.EffectiveStatus()})
		}
	}
	return results
}

// SaveMeetingRequest is the payload for storing a meeting snapshot.
type SaveMeetingRequest struct {
	Date    time.Time                `json:"date" validate:"required"`
	Entries []models.AttendanceEntry `json:"entries" validate:"required"`
	Confirm bool                     `json:"confirm"`
}

// WorkingSnapshot builds the editable list for a date, seeded from the
// already-saved record when one exists.
func (s *AttendanceService) WorkingSnapshot(ctx context.Context, date time.Time) ([]models.AttendanceEntry, error) {
	roster, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var prior []models.AttendanceEntry
	existing, err := s.meetings.FindByDate(ctx, date.UTC().Truncate(24*time.Hour))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		prior, err = existing.DecodeEntries()
		if err != nil {
			s.logger.Warn("skipping malformed meeting record",
				zap.String("meeting_id", existing.ID),
				zap.Error(err))
			prior = nil
		}
	}
	return BuildWorkingSnapshot(roster, prior), nil
}

// SaveMeeting stores a snapshot for a date, replacing any prior record
// for the same date. Unless the request confirms the replacement, a
// conflicting date is reported back instead of silently overwritten.
func (s *AttendanceService) SaveMeeting(ctx context.Context, req SaveMeetingRequest) (*models.MeetingRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	for _, entry := range req.Entries {
		if entry.Name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every entry requires a name")
		}
	}

	existing, err := s.meetings.FindByDate(ctx, req.Date.UTC().Truncate(24*time.Hour))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	plan, err := PlanMeetingSave(existing, req.Date, req.Entries)
	if err != nil {
		return nil, fmt.Errorf("plan meeting save: %w", err)
	}
	if plan.RequiresConfirm && !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "a meeting is already recorded for this date; confirm to replace it")
	}

	stored, err := s.meetings.Save(ctx, plan.RemoveID, &plan.Record)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordMeetingSaved()
	}
	s.invalidate(ctx)
	return stored, nil
}

// History returns every saved meeting, newest first.
func (s *AttendanceService) History(ctx context.Context) ([]models.MeetingRecord, error) {
	return s.meetings.ListAll(ctx)
}

// DeleteMeeting removes a saved record. Deleting a record that is
// already gone is a no-op.
func (s *AttendanceService) DeleteMeeting(ctx context.Context, id string) error {
	affected, err := s.meetings.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Debug("delete of missing meeting ignored", zap.String("meeting_id", id))
		return nil
	}
	s.invalidate(ctx)
	return nil
}

// Rollup computes the per-student aggregate, served from cache when a
// fresh copy exists.
func (s *AttendanceService) Rollup(ctx context.Context) (*models.AttendanceRollup, error) {
	var cached models.AttendanceRollup
	if hit, _ := s.cache.Get(ctx, cacheKeyRollup, &cached); hit {
		return &cached, nil
	}

	roster, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	meetings, dates, err := s.decodedMeetings(ctx)
	if err != nil {
		return nil, err
	}
	rollup := ComputeRollup(roster, meetings, dates)

	if err := s.cache.Set(ctx, cacheKeyRollup, rollup, s.cacheTTL); err != nil {
		s.logger.Warn("caching rollup failed", zap.Error(err))
	}
	return &rollup, nil
}

// StatsForDate summarises the saved meeting on a date against its own
// roster snapshot. A date without a meeting yields zeroed stats.
func (s *AttendanceService) StatsForDate(ctx context.Context, date time.Time) (*models.SnapshotStats, error) {
	existing, err := s.meetings.FindByDate(ctx, date.UTC().Truncate(24*time.Hour))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			stats := models.SnapshotStats{}
			return &stats, nil
		}
		return nil, err
	}
	entries, err := existing.DecodeEntries()
	if err != nil {
		s.logger.Warn("skipping malformed meeting record",
			zap.String("meeting_id", existing.ID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrMalformedRecord, "")
	}
	stats := ComputeSnapshotStats(entries)
	return &stats, nil
}

// SearchStudent returns all dated statuses stored under the given name.
func (s *AttendanceService) SearchStudent(ctx context.Context, name string) ([]models.StudentHistoryEntry, error) {
	meetings, _, err := s.decodedMeetings(ctx)
	if err != nil {
		return nil, err
	}
	return SearchByStudent(meetings, name), nil
}

// SearchDate returns the statuses of the meeting saved on a date.
func (s *AttendanceService) SearchDate(ctx context.Context, date time.Time) ([]models.DateEntry, error) {
	meetings, _, err := s.decodedMeetings(ctx)
	if err != nil {
		return nil, err
	}
	return SearchByDate(meetings, date), nil
}

// decodedMeetings loads every record and decodes the entries, skipping
// records whose stored shape cannot be read. The returned dates cover
// every record, malformed ones included, so rollups keep counting a
// meeting even when its entries are unreadable.
func (s *AttendanceService) decodedMeetings(ctx context.Context) ([]DecodedMeeting, []time.Time, error) {
	records, err := s.meetings.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	dates := make([]time.Time, 0, len(records))
	meetings := make([]DecodedMeeting, 0, len(records))
	for i := range records {
		dates = append(dates, records[i].Date)
		entries, err := records[i].DecodeEntries()
		if err != nil {
			s.logger.Warn("skipping malformed meeting record",
				zap.String("meeting_id", records[i].ID),
				zap.Error(err))
			continue
		}
		meetings = append(meetings, DecodedMeeting{ID: records[i].ID, Date: records[i].Date, Entries: entries})
	}
	return meetings, dates, nil
}

func (s *AttendanceService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePatternAttendance); err != nil {
		s.logger.Warn("attendance cache invalidation failed", zap.Error(err))
	}
}
