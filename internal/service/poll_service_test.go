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

type fakePollRepo struct {
	polls            map[string]*models.Poll
	responsesUpdated bool
}

func (f *fakePollRepo) ListAll(context.Context) ([]models.Poll, error) {
	out := make([]models.Poll, 0, len(f.polls))
	for _, poll := range f.polls {
		out = append(out, *poll)
	}
	return out, nil
}

func (f *fakePollRepo) FindByID(_ context.Context, id string) (*models.Poll, error) {
	poll, ok := f.polls[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *poll
	return &copied, nil
}

func (f *fakePollRepo) Create(_ context.Context, poll *models.Poll) (*models.Poll, error) {
	if poll.ID == "" {
		poll.ID = "p1"
	}
	if len(poll.Responses) == 0 {
		poll.Responses = types.JSONText("[]")
	}
	f.polls[poll.ID] = poll
	return poll, nil
}

func (f *fakePollRepo) Update(_ context.Context, poll *models.Poll) (*models.Poll, error) {
	stored, ok := f.polls[poll.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	stored.Title = poll.Title
	stored.Description = poll.Description
	stored.Questions = poll.Questions
	return stored, nil
}

func (f *fakePollRepo) UpdateResponses(_ context.Context, id string, responses types.JSONText) (*models.Poll, error) {
	stored, ok := f.polls[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	stored.Responses = responses
	f.responsesUpdated = true
	return stored, nil
}

func (f *fakePollRepo) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := f.polls[id]; !ok {
		return 0, nil
	}
	delete(f.polls, id)
	return 1, nil
}

type fakeVoterRoster struct {
	emails map[string]bool
}

func (f *fakeVoterRoster) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	if !f.emails[email] {
		return nil, sql.ErrNoRows
	}
	return &models.Student{Name: "Member", Email: email}, nil
}

func newPollService(repo *fakePollRepo, roster *fakeVoterRoster) *PollService {
	return NewPollService(repo, roster, nil, nil, zap.NewNop(), 0)
}

func seedPoll(t *testing.T, repo *fakePollRepo, questions []models.Question, responses []models.PollResponse) *models.Poll {
	t.Helper()
	poll := &models.Poll{ID: "p1", Title: "Meetup day", Type: models.PollSingle}
	require.NoError(t, poll.SetQuestions(questions))
	require.NoError(t, poll.SetResponses(responses))
	repo.polls["p1"] = poll
	return poll
}

func TestValidateDraftFirstViolationWins(t *testing.T) {
	draft := models.PollDraft{
		Questions: []models.Question{
			{Text: "", Type: models.QuestionMultipleChoice},
			{Text: "ok", Type: models.QuestionMultipleChoice, Options: []string{"only one"}},
		},
	}

	err := ValidateDraft(draft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	draft.Title = "Meetup day"
	err = ValidateDraft(draft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question 1")

	draft.Questions[0].Text = "Pick a day"
	err = ValidateDraft(draft)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question 2")
}

func TestValidateDraftOptionsMustSurviveTrimming(t *testing.T) {
	draft := models.PollDraft{
		Title: "Meetup day",
		Questions: []models.Question{
			{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "   "}},
		},
	}
	require.Error(t, ValidateDraft(draft))

	draft.Questions[0].Options = []string{"Mon", " Tue "}
	require.NoError(t, ValidateDraft(draft))
}

func TestValidateDraftTextQuestionNeedsNoOptions(t *testing.T) {
	draft := models.PollDraft{
		Title:     "Feedback",
		Questions: []models.Question{{Text: "Thoughts?", Type: models.QuestionText}},
	}
	assert.NoError(t, ValidateDraft(draft))
}

func TestNormalizeDraftTrimsAndDefaults(t *testing.T) {
	draft := models.PollDraft{
		Title:       "  Meetup day  ",
		Description: " pick wisely ",
		Questions: []models.Question{
			{Text: " Pick a day ", Options: []string{" Mon ", "", "Tue"}},
		},
	}

	normalized := NormalizeDraft(draft)
	assert.Equal(t, "Meetup day", normalized.Title)
	assert.Equal(t, "pick wisely", normalized.Description)
	assert.Equal(t, models.PollSingle, normalized.Type)
	require.Len(t, normalized.Questions, 1)
	assert.Equal(t, "Pick a day", normalized.Questions[0].Text)
	assert.Equal(t, models.QuestionMultipleChoice, normalized.Questions[0].Type)
	assert.Equal(t, []string{"Mon", "Tue"}, normalized.Questions[0].Options)
}

func TestUpsertResponseReplacesInPlace(t *testing.T) {
	responses := []models.PollResponse{
		{UserID: "u1", Answers: models.AnswerSet{0: models.ChoiceAnswer(0)}},
		{UserID: "u2", Answers: models.AnswerSet{0: models.ChoiceAnswer(1)}},
	}

	updated := UpsertResponse(responses, models.PollResponse{UserID: "u1", Answers: models.AnswerSet{0: models.ChoiceAnswer(1)}})
	require.Len(t, updated, 2)
	assert.Equal(t, "u1", updated[0].UserID)
	assert.Equal(t, 1, *updated[0].Answers[0].OptionIndex)

	// Submitting the identical response again changes nothing.
	again := UpsertResponse(updated, updated[0])
	assert.Len(t, again, 2)
}

func TestUpsertResponseAppendsNewUser(t *testing.T) {
	updated := UpsertResponse(nil, models.PollResponse{UserID: "u1"})
	require.Len(t, updated, 1)
	assert.Equal(t, "u1", updated[0].UserID)
}

func TestTallyPollZeroResponses(t *testing.T) {
	questions := []models.Question{
		{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}},
	}

	result := TallyPoll(nil, questions, nil)
	assert.Zero(t, result.TotalVotes)
	require.Len(t, result.Questions, 1)
	for _, option := range result.Questions[0].Options {
		assert.Zero(t, option.Count)
		assert.Zero(t, option.Percentage)
		assert.False(t, option.Winning)
	}
}

func TestTallyPollTieMarksAllWinners(t *testing.T) {
	questions := []models.Question{
		{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}},
	}
	responses := []models.PollResponse{
		{UserID: "u1", UserName: "Ada", Answers: models.AnswerSet{0: models.ChoiceAnswer(0)}},
		{UserID: "u2", UserName: "Grace", Answers: models.AnswerSet{0: models.ChoiceAnswer(1)}},
	}

	result := TallyPoll(nil, questions, responses)
	assert.Equal(t, 2, result.TotalVotes)
	options := result.Questions[0].Options
	require.Len(t, options, 2)
	assert.Equal(t, 50.0, options[0].Percentage)
	assert.Equal(t, 50.0, options[1].Percentage)
	assert.True(t, options[0].Winning)
	assert.True(t, options[1].Winning)
}

func TestTallyPollSkipsMissingAndOutOfRangeAnswers(t *testing.T) {
	questions := []models.Question{
		{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}},
		{Text: "Thoughts?", Type: models.QuestionText},
	}
	responses := []models.PollResponse{
		{UserID: "u1", Answers: models.AnswerSet{0: models.ChoiceAnswer(5)}},
		{UserID: "u2", Answers: models.AnswerSet{1: models.TextAnswer("fine")}},
	}

	result := TallyPoll(nil, questions, responses)
	assert.Equal(t, 2, result.TotalVotes)
	for _, option := range result.Questions[0].Options {
		assert.Zero(t, option.Count)
	}
	require.Len(t, result.Questions[1].TextAnswers, 1)
	assert.Equal(t, "fine", result.Questions[1].TextAnswers[0].Text)
}

func TestTallyPollTextAnswersKeepResponseOrder(t *testing.T) {
	questions := []models.Question{{Text: "Thoughts?", Type: models.QuestionText}}
	responses := []models.PollResponse{
		{UserID: "u1", Answers: models.AnswerSet{0: models.TextAnswer("first")}},
		{UserID: "u2", Answers: models.AnswerSet{0: models.TextAnswer("second")}},
	}

	result := TallyPoll(nil, questions, responses)
	require.Len(t, result.Questions[0].TextAnswers, 2)
	assert.Equal(t, "first", result.Questions[0].TextAnswers[0].Text)
	assert.Equal(t, "second", result.Questions[0].TextAnswers[1].Text)
}

func TestVoteRejectsNonRosterEmailAndLeavesPollUntouched(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}}}, nil)
	svc := newPollService(repo, &fakeVoterRoster{emails: map[string]bool{}})

	_, err := svc.Vote(context.Background(), "p1", models.Identity{UserID: "u1", Email: "stranger@club.test"}, models.AnswerSet{0: models.ChoiceAnswer(0)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIneligible.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.responsesUpdated)
}

func TestVoteTwiceKeepsSingleResponse(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}}}, nil)
	roster := &fakeVoterRoster{emails: map[string]bool{"ada@club.test": true}}
	svc := newPollService(repo, roster)

	voter := models.Identity{UserID: "u1", Name: "Ada", Email: "ada@club.test"}
	_, err := svc.Vote(context.Background(), "p1", voter, models.AnswerSet{0: models.ChoiceAnswer(0)})
	require.NoError(t, err)
	stored, err := svc.Vote(context.Background(), "p1", voter, models.AnswerSet{0: models.ChoiceAnswer(1)})
	require.NoError(t, err)

	responses, err := stored.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, 1, *responses[0].Answers[0].OptionIndex)
}

func TestMyVoteReturnsNilWhenAbsent(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Thoughts?", Type: models.QuestionText}}, nil)
	svc := newPollService(repo, &fakeVoterRoster{emails: map[string]bool{}})

	vote, err := svc.MyVote(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.Nil(t, vote)
}

func TestResultsDecodeLegacyResponseShape(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	poll := seedPoll(t, repo, []models.Question{{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}}}, nil)
	poll.Responses = types.JSONText(`"[{\"userId\":\"u1\",\"userName\":\"Ada\",\"userEmail\":\"ada@club.test\",\"answers\":{\"0\":1},\"timestamp\":\"2024-03-04T10:00:00Z\"}]"`)
	svc := newPollService(repo, &fakeVoterRoster{emails: map[string]bool{}})

	result, err := svc.Results(context.Background(), "p1", models.Identity{UserID: "admin", Privileged: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalVotes)
	assert.Equal(t, 1, result.Questions[0].Options[1].Count)
}

func TestResultsHiddenUntilMemberVotes(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Pick a day", Type: models.QuestionMultipleChoice, Options: []string{"Mon", "Tue"}}}, nil)
	roster := &fakeVoterRoster{emails: map[string]bool{"ada@club.test": true}}
	svc := newPollService(repo, roster)

	member := models.Identity{UserID: "u1", Name: "Ada", Email: "ada@club.test"}
	_, err := svc.Results(context.Background(), "p1", member)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Vote(context.Background(), "p1", member, models.AnswerSet{0: models.ChoiceAnswer(0)})
	require.NoError(t, err)

	result, err := svc.Results(context.Background(), "p1", member)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalVotes)
}

func TestAnsweredPollsListsOnlyVotedPolls(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Thoughts?", Type: models.QuestionText}}, nil)
	roster := &fakeVoterRoster{emails: map[string]bool{"ada@club.test": true}}
	svc := newPollService(repo, roster)

	answered, err := svc.AnsweredPolls(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, answered)

	_, err = svc.Vote(context.Background(), "p1", models.Identity{UserID: "u1", Email: "ada@club.test"}, models.AnswerSet{0: models.TextAnswer("ok")})
	require.NoError(t, err)

	answered, err = svc.AnsweredPolls(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, answered)
}

func TestDeleteMissingPollIsNoOp(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	svc := newPollService(repo, &fakeVoterRoster{emails: map[string]bool{}})

	assert.NoError(t, svc.Delete(context.Background(), "ghost"))
}

func TestVoteTimestampRecorded(t *testing.T) {
	repo := &fakePollRepo{polls: map[string]*models.Poll{}}
	seedPoll(t, repo, []models.Question{{Text: "Thoughts?", Type: models.QuestionText}}, nil)
	roster := &fakeVoterRoster{emails: map[string]bool{"ada@club.test": true}}
	svc := newPollService(repo, roster)

	before := time.Now().UTC().Add(-time.Second)
	stored, err := svc.Vote(context.Background(), "p1", models.Identity{UserID: "u1", Email: "ada@club.test"}, models.AnswerSet{0: models.TextAnswer("hi")})
	require.NoError(t, err)

	responses, err := stored.DecodeResponses()
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, responses[0].Timestamp.After(before))
}
