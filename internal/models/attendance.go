package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AttendanceStatus is the per-student state recorded for a meeting.
type AttendanceStatus string

const (
	StatusAbsent  AttendanceStatus = "absent"
	StatusPresent AttendanceStatus = "present"
	StatusExcused AttendanceStatus = "excused"
)

// Valid reports whether s is one of the three recognised statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusAbsent, StatusPresent, StatusExcused:
		return true
	}
	return false
}

// Next advances the status along the marking cycle
// absent -> present -> excused -> absent. Unrecognised values behave
// like excused so a stray status always returns to absent.
func (s AttendanceStatus) Next() AttendanceStatus {
	switch s {
	case StatusAbsent:
		return StatusPresent
	case StatusPresent:
		return StatusExcused
	default:
		return StatusAbsent
	}
}

// AttendanceEntry is one student's mark inside a meeting record. Name is
// snapshotted at save time so later roster edits do not rewrite history.
// Present mirrors Status for records written before statuses existed.
type AttendanceEntry struct {
	Name    string           `json:"name"`
	Status  AttendanceStatus `json:"status,omitempty"`
	Present bool             `json:"present"`
}

// EffectiveStatus resolves the entry's status, falling back to the
// legacy present flag when the status field is missing or unknown.
func (e AttendanceEntry) EffectiveStatus() AttendanceStatus {
	if e.Status.Valid() {
		return e.Status
	}
	if e.Present {
		return StatusPresent
	}
	return StatusAbsent
}

// MeetingRecord is one saved meeting. Entries is stored as JSONB; older
// rows may hold a double-encoded JSON string instead of an array, so
// reads must go through DecodeEntries.
type MeetingRecord struct {
	ID        string         `db:"id" json:"id"`
	Date      time.Time      `db:"meeting_date" json:"date"`
	Entries   types.JSONText `db:"entries" json:"entries"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// DecodeEntries returns the record's attendance entries. It accepts both
// the native JSON array shape and the legacy double-encoded string
// shape. Any other shape is an error; callers are expected to skip and
// log such records rather than fail the whole operation.
func (r *MeetingRecord) DecodeEntries() ([]AttendanceEntry, error) {
	return decodeFlexible[AttendanceEntry](r.Entries)
}

// SetEntries replaces the record's entries with the canonical array
// encoding.
func (r *MeetingRecord) SetEntries(entries []AttendanceEntry) error {
	if entries == nil {
		entries = []AttendanceEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	r.Entries = types.JSONText(raw)
	return nil
}

// decodeFlexible unmarshals a JSONB column that holds either a JSON
// array or a JSON string containing the array.
func decodeFlexible[T any](raw types.JSONText) ([]T, error) {
	if len(raw) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err == nil {
		return out, nil
	}
	var nested string
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nested), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MeetingSavePlan is the outcome of planning a save for a meeting date.
// When the date is already recorded, RemoveID names the row to replace
// and RequiresConfirm tells the caller to warn before proceeding.
type MeetingSavePlan struct {
	RemoveID        *string       `json:"remove_id,omitempty"`
	RequiresConfirm bool          `json:"requires_confirm"`
	Record          MeetingRecord `json:"record"`
}

// StudentRollup is one roster member's line in the attendance rollup.
type StudentRollup struct {
	Name           string  `json:"name"`
	AttendedWeight float64 `json:"attended_weight"`
	TotalMeetings  int     `json:"total_meetings"`
	Percentage     int     `json:"percentage"`
}

// AttendanceRollup aggregates per-student attendance across all saved
// meetings.
type AttendanceRollup struct {
	Students      []StudentRollup `json:"students"`
	TotalMeetings int             `json:"total_meetings"`
}

// SnapshotStats summarises a single working snapshot against the
// current roster size. Each percentage is rounded independently and may
// not sum to exactly 100.
type SnapshotStats struct {
	RosterSize   int `json:"roster_size"`
	PresentCount int `json:"present_count"`
	ExcusedCount int `json:"excused_count"`
	AbsentCount  int `json:"absent_count"`
	PresentPct   int `json:"present_pct"`
	ExcusedPct   int `json:"excused_pct"`
	AbsentPct    int `json:"absent_pct"`
}

// StudentHistoryEntry is one dated status for a student history search.
type StudentHistoryEntry struct {
	Date   time.Time        `json:"date"`
	Status AttendanceStatus `json:"status"`
}

// DateEntry is one student's status for a meeting-date search.
type DateEntry struct {
	Name   string           `json:"name"`
	Status AttendanceStatus `json:"status"`
}
