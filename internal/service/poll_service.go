package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
)

const cachePatternPolls = "polls:*"

type pollRepository interface {
	ListAll(ctx context.Context) ([]models.Poll, error)
	FindByID(ctx context.Context, id string) (*models.Poll, error)
	Create(ctx context.Context, poll *models.Poll) (*models.Poll, error)
	Update(ctx context.Context, poll *models.Poll) (*models.Poll, error)
	UpdateResponses(ctx context.Context, id string, responses types.JSONText) (*models.Poll, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type voterRoster interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
}

// PollService owns poll lifecycle, voting and tallying.
type PollService struct {
	polls    pollRepository
	roster   voterRoster
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewPollService constructs the service.
func NewPollService(polls pollRepository, roster voterRoster, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *PollService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollService{
		polls:    polls,
		roster:   roster,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// ValidateDraft checks a draft before it is stored. The first violation
// wins and question numbers in messages are 1-indexed.
func ValidateDraft(draft models.PollDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "poll title is required")
	}
	if len(draft.Questions) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one question is required")
	}
	for i, question := range draft.Questions {
		if strings.TrimSpace(question.Text) == "" {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d requires text", i+1))
		}
		if question.Type == models.QuestionText {
			continue
		}
		options := 0
		for _, option := range question.Options {
			if strings.TrimSpace(option) != "" {
				options++
			}
		}
		if options < 2 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d requires at least two options", i+1))
		}
	}
	return nil
}

// NormalizeDraft trims every text field, drops empty options and fills
// in the default question and poll types.
func NormalizeDraft(draft models.PollDraft) models.PollDraft {
	out := models.PollDraft{
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Type:        draft.Type,
	}
	if out.Type == "" {
		out.Type = models.PollSingle
	}
	out.Questions = make([]models.Question, 0, len(draft.Questions))
	for _, question := range draft.Questions {
		normalized := models.Question{
			Text: strings.TrimSpace(question.Text),
			Type: question.Type,
		}
		if normalized.Type == "" {
			normalized.Type = models.QuestionMultipleChoice
		}
		if normalized.Type == models.QuestionMultipleChoice {
			normalized.Options = make([]string, 0, len(question.Options))
			for _, option := range question.Options {
				trimmed := strings.TrimSpace(option)
				if trimmed != "" {
					normalized.Options = append(normalized.Options, trimmed)
				}
			}
		}
		out.Questions = append(out.Questions, normalized)
	}
	return out
}

// UpsertResponse merges a member's submission into the response list:
// an existing response for the same user is replaced in place, a new
// user is appended. Submitting the same response twice leaves one copy.
func UpsertResponse(responses []models.PollResponse, incoming models.PollResponse) []models.PollResponse {
	for i := range responses {
		if responses[i].UserID == incoming.UserID {
			responses[i] = incoming
			return responses
		}
	}
	return append(responses, incoming)
}

// TallyPoll computes per-question results. Multiple-choice counts and
// percentages are taken against the full response count, winners are
// every option holding the positive maximum, and text questions collect
// raw answers in response order. A response without an answer for a
// question simply does not contribute to it.
func TallyPoll(poll *models.Poll, questions []models.Question, responses []models.PollResponse) models.PollResult {
	result := models.PollResult{
		TotalVotes: len(responses),
		Questions:  make([]models.QuestionResult, 0, len(questions)),
	}
	if poll != nil {
		result.PollID = poll.ID
		result.Title = poll.Title
	}
	for qi, question := range questions {
		qr := models.QuestionResult{Question: question.Text, Type: question.Type}
		if question.Type == models.QuestionMultipleChoice {
			qr.Options = tallyOptions(question.Options, qi, responses, result.TotalVotes)
		} else {
			qr.TextAnswers = collectTextAnswers(qi, responses)
		}
		result.Questions = append(result.Questions, qr)
	}
	return result
}

func tallyOptions(options []string, questionIndex int, responses []models.PollResponse, totalVotes int) []models.OptionResult {
	results := make([]models.OptionResult, len(options))
	for i, text := range options {
		results[i] = models.OptionResult{Text: text, Voters: make([]models.Voter, 0)}
	}
	for _, response := range responses {
		answer, ok := response.Answers[questionIndex]
		if !ok || !answer.IsChoice() {
			continue
		}
		idx := *answer.OptionIndex
		if idx < 0 || idx >= len(results) {
			continue
		}
		results[idx].Count++
		results[idx].Voters = append(results[idx].Voters, models.Voter{
			UserID: response.UserID,
			Name:   response.UserName,
			Email:  response.UserEmail,
		})
	}
	max := 0
	for i := range results {
		if totalVotes > 0 {
			pct := float64(results[i].Count) / float64(totalVotes) * 100
			results[i].Percentage = math.Round(pct*10) / 10
		}
		if results[i].Count > max {
			max = results[i].Count
		}
	}
	if max > 0 {
		for i := range results {
			results[i].Winning = results[i].Count == max
		}
	}
	return results
}

func collectTextAnswers(questionIndex int, responses []models.PollResponse) []models.TextResult {
	answers := make([]models.TextResult, 0)
	for _, response := range responses {
		answer, ok := response.Answers[questionIndex]
		if !ok || answer.IsChoice() {
			continue
		}
		answers = append(answers, models.TextResult{
			UserID: response.UserID,
			Name:   response.UserName,
			Email:  response.UserEmail,
			Text:   answer.Text,
		})
	}
	return answers
}

// List returns every poll, newest first.
func (s *PollService) List(ctx context.Context) ([]models.Poll, error) {
	return s.polls.ListAll(ctx)
}

// Get returns one poll.
func (s *PollService) Get(ctx context.Context, id string) (*models.Poll, error) {
	poll, err := s.polls.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "poll not found")
		}
		return nil, err
	}
	return poll, nil
}

// Create validates, normalizes and stores a draft.
func (s *PollService) Create(ctx context.Context, draft models.PollDraft, createdBy string) (*models.Poll, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	normalized := NormalizeDraft(draft)
	poll := &models.Poll{
		Title:       normalized.Title,
		Description: normalized.Description,
		Type:        normalized.Type,
		CreatedBy:   createdBy,
	}
	if err := poll.SetQuestions(normalized.Questions); err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	stored, err := s.polls.Create(ctx, poll)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return stored, nil
}

// Update validates, normalizes and rewrites a poll's editable fields.
// Existing responses are untouched.
func (s *PollService) Update(ctx context.Context, id string, draft models.PollDraft) (*models.Poll, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	normalized := NormalizeDraft(draft)
	poll := &models.Poll{
		ID:          id,
		Title:       normalized.Title,
		Description: normalized.Description,
		Type:        normalized.Type,
	}
	if err := poll.SetQuestions(normalized.Questions); err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	stored, err := s.polls.Update(ctx, poll)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "poll not found")
		}
		return nil, err
	}
	s.invalidate(ctx)
	return stored, nil
}

// Delete removes a poll. Deleting one that is already gone is a no-op.
func (s *PollService) Delete(ctx context.Context, id string) error {
	affected, err := s.polls.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Debug("delete of missing poll ignored", zap.String("poll_id", id))
		return nil
	}
	s.invalidate(ctx)
	return nil
}

// Vote records a member's answers. Only callers whose email is on the
// roster may vote; an ineligible vote leaves the poll untouched. Voting
// twice replaces the earlier submission.
func (s *PollService) Vote(ctx context.Context, pollID string, voter models.Identity, answers models.AnswerSet) (*models.Poll, error) {
	if _, err := s.roster.FindByEmail(ctx, voter.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIneligible, "")
		}
		return nil, err
	}

	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	responses, err := poll.DecodeResponses()
	if err != nil {
		s.logger.Warn("skipping malformed poll responses",
			zap.String("poll_id", poll.ID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrMalformedRecord, "")
	}

	updated := UpsertResponse(responses, models.PollResponse{
		UserID:    voter.UserID,
		UserName:  voter.Name,
		UserEmail: voter.Email,
		Answers:   answers,
		Timestamp: time.Now().UTC(),
	})
	payload, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}
	stored, err := s.polls.UpdateResponses(ctx, pollID, types.JSONText(payload))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordVote()
	}
	s.invalidate(ctx)
	return stored, nil
}

// MyVote returns the caller's stored response for a poll, or nil when
// they have not voted.
func (s *PollService) MyVote(ctx context.Context, pollID, userID string) (*models.PollResponse, error) {
	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	responses, err := poll.DecodeResponses()
	if err != nil {
		s.logger.Warn("skipping malformed poll responses",
			zap.String("poll_id", poll.ID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrMalformedRecord, "")
	}
	for i := range responses {
		if responses[i].UserID == userID {
			return &responses[i], nil
		}
	}
	return nil, nil
}

// AnsweredPolls returns the ids of every poll the user has voted in.
func (s *PollService) AnsweredPolls(ctx context.Context, userID string) ([]string, error) {
	polls, err := s.polls.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	answered := make([]string, 0, len(polls))
	for i := range polls {
		responses, err := polls[i].DecodeResponses()
		if err != nil {
			s.logger.Warn("skipping malformed poll responses",
				zap.String("poll_id", polls[i].ID),
				zap.Error(err))
			continue
		}
		for _, resp := range responses {
			if resp.UserID == userID {
				answered = append(answered, polls[i].ID)
				break
			}
		}
	}
	return answered, nil
}

// Results tallies a poll, served from cache when a fresh copy exists.
// Admins may always look; members only after casting their own vote.
func (s *PollService) Results(ctx context.Context, pollID string, viewer models.Identity) (*models.PollResult, error) {
	if !viewer.Privileged {
		vote, err := s.MyVote(ctx, pollID, viewer.UserID)
		if err != nil {
			return nil, err
		}
		if vote == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "results are visible after voting")
		}
	}

	key := fmt.Sprintf("polls:%s:results", pollID)
	var cached models.PollResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	poll, err := s.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	questions, err := poll.DecodeQuestions()
	if err != nil {
		s.logger.Warn("skipping malformed poll questions",
			zap.String("poll_id", poll.ID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrMalformedRecord, "")
	}
	responses, err := poll.DecodeResponses()
	if err != nil {
		s.logger.Warn("skipping malformed poll responses",
			zap.String("poll_id", poll.ID),
			zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrMalformedRecord, "")
	}

	result := TallyPoll(poll, questions, responses)
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("caching poll results failed", zap.Error(err))
	}
	return &result, nil
}

func (s *PollService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePatternPolls); err != nil {
		s.logger.Warn("poll cache invalidation failed", zap.Error(err))
	}
}
