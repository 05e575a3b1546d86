package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// QuestionType distinguishes the two supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionText           QuestionType = "text"
)

// PollType describes how many responses a poll accepts per member.
// Only single-response polls are currently produced by the UI; the
// field is kept so stored polls round-trip unchanged.
type PollType string

const (
	PollSingle PollType = "single"
)

// Question is one question inside a poll. Options is only meaningful
// for multiple-choice questions.
type Question struct {
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Answer holds a member's answer to one question: an option index for
// multiple-choice questions or free text for text questions. The wire
// form is a bare JSON number or string.
type Answer struct {
	OptionIndex *int
	Text        string
}

// ChoiceAnswer builds a multiple-choice answer.
func ChoiceAnswer(idx int) Answer {
	return Answer{OptionIndex: &idx}
}

// TextAnswer builds a free-text answer.
func TextAnswer(text string) Answer {
	return Answer{Text: text}
}

// IsChoice reports whether the answer selects an option.
func (a Answer) IsChoice() bool {
	return a.OptionIndex != nil
}

// MarshalJSON encodes the answer as a number or a string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.OptionIndex != nil {
		return json.Marshal(*a.OptionIndex)
	}
	return json.Marshal(a.Text)
}

// UnmarshalJSON decodes a number into OptionIndex and a string into
// Text. Fractional numbers are truncated the way stored responses were.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		idx := int(num)
		a.OptionIndex = &idx
		a.Text = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("answer must be a number or string: %w", err)
	}
	a.OptionIndex = nil
	a.Text = text
	return nil
}

// AnswerSet maps question index to the member's answer. The stored JSON
// keys the map by the stringified question index; keys that are not
// integers are dropped on read.
type AnswerSet map[int]Answer

// MarshalJSON encodes the set with stringified integer keys.
func (s AnswerSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]Answer, len(s))
	for idx, ans := range s {
		out[strconv.Itoa(idx)] = ans
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes stringified integer keys back into indexes.
func (s *AnswerSet) UnmarshalJSON(data []byte) error {
	var raw map[string]Answer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AnswerSet, len(raw))
	for key, ans := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[idx] = ans
	}
	*s = out
	return nil
}

// PollResponse is one member's submission to a poll.
type PollResponse struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	UserEmail string    `json:"userEmail"`
	Answers   AnswerSet `json:"answers"`
	Timestamp time.Time `json:"timestamp"`
}

// Poll is one stored poll. Questions and Responses are JSONB columns;
// like meeting entries, older rows may hold double-encoded strings, so
// reads must go through the Decode helpers.
type Poll struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Type        PollType       `db:"poll_type" json:"type"`
	Questions   types.JSONText `db:"questions" json:"questions"`
	Responses   types.JSONText `db:"responses" json:"responses"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// DecodeQuestions returns the poll's questions, accepting both the
// array shape and the legacy double-encoded string shape.
func (p *Poll) DecodeQuestions() ([]Question, error) {
	return decodeFlexible[Question](p.Questions)
}

// DecodeResponses returns the poll's responses, accepting both shapes.
func (p *Poll) DecodeResponses() ([]PollResponse, error) {
	return decodeFlexible[PollResponse](p.Responses)
}

// SetQuestions replaces the poll's questions with the canonical array
// encoding.
func (p *Poll) SetQuestions(questions []Question) error {
	if questions == nil {
		questions = []Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	p.Questions = types.JSONText(raw)
	return nil
}

// SetResponses replaces the poll's responses with the canonical array
// encoding.
func (p *Poll) SetResponses(responses []PollResponse) error {
	if responses == nil {
		responses = []PollResponse{}
	}
	raw, err := json.Marshal(responses)
	if err != nil {
		return err
	}
	p.Responses = types.JSONText(raw)
	return nil
}

// PollDraft is the editable form of a poll before it is stored.
type PollDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        PollType   `json:"type"`
	Questions   []Question `json:"questions"`
}

// Voter identifies a member who picked a given option.
type Voter struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// OptionResult is the tally for one multiple-choice option.
type OptionResult struct {
	Text       string  `json:"text"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Winning    bool    `json:"winning"`
	Voters     []Voter `json:"voters"`
}

// TextResult is one free-text answer in a question's results.
type TextResult struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Text   string `json:"text"`
}

// QuestionResult is the tallied outcome for a single question.
type QuestionResult struct {
	Question    string         `json:"question"`
	Type        QuestionType   `json:"type"`
	Options     []OptionResult `json:"options,omitempty"`
	TextAnswers []TextResult   `json:"text_answers,omitempty"`
}

// PollResult is the tallied outcome for a whole poll.
type PollResult struct {
	PollID     string           `json:"poll_id"`
	Title      string           `json:"title"`
	TotalVotes int              `json:"total_votes"`
	Questions  []QuestionResult `json:"questions"`
}
