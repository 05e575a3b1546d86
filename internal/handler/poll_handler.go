package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubhub-dev/clubhub-api/internal/models"
	"github.com/clubhub-dev/clubhub-api/internal/service"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
	"github.com/clubhub-dev/clubhub-api/pkg/response"
)

// PollHandler exposes poll endpoints.
type PollHandler struct {
	polls *service.PollService
}

// NewPollHandler constructs PollHandler.
func NewPollHandler(polls *service.PollService) *PollHandler {
	return &PollHandler{polls: polls}
}

// List godoc
// @Summary List polls
// @Tags Polls
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /polls [get]
func (h *PollHandler) List(c *gin.Context) {
	polls, err := h.polls.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, polls, nil)
}

// Get godoc
// @Summary Get one poll
// @Tags Polls
// @Produce json
// @Param id path string true "Poll ID"
// @Success 200 {object} response.Envelope
// @Router /polls/{id} [get]
func (h *PollHandler) Get(c *gin.Context) {
	poll, err := h.polls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, poll, nil)
}

// Create godoc
// @Summary Create a poll
// @Tags Polls
// @Accept json
// @Produce json
// @Param payload body models.PollDraft true "Poll draft"
// @Success 201 {object} response.Envelope
// @Router /polls [post]
func (h *PollHandler) Create(c *gin.Context) {
	var draft models.PollDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	poll, err := h.polls.Create(c.Request.Context(), draft, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, poll)
}

// Update godoc
// @Summary Update a poll's title, description and questions
// @Tags Polls
// @Accept json
// @Produce json
// @Param id path string true "Poll ID"
// @Param payload body models.PollDraft true "Poll draft"
// @Success 200 {object} response.Envelope
// @Router /polls/{id} [put]
func (h *PollHandler) Update(c *gin.Context) {
	var draft models.PollDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	poll, err := h.polls.Update(c.Request.Context(), c.Param("id"), draft)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, poll, nil)
}

// Delete godoc
// @Summary Delete a poll
// @Tags Polls
// @Produce json
// @Param id path string true "Poll ID"
// @Success 204
// @Router /polls/{id} [delete]
func (h *PollHandler) Delete(c *gin.Context) {
	if err := h.polls.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// VoteRequest carries the caller's answers keyed by question index.
type VoteRequest struct {
	Answers models.AnswerSet `json:"answers"`
}

// Vote godoc
// @Summary Record the caller's vote
// @Tags Polls
// @Accept json
// @Produce json
// @Param id path string true "Poll ID"
// @Param payload body VoteRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope "Caller is not on the roster"
// @Router /polls/{id}/votes [post]
func (h *PollHandler) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	poll, err := h.polls.Vote(c.Request.Context(), c.Param("id"), claims.Identity(), req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, poll, nil)
}

// MyVote godoc
// @Summary Return the caller's stored vote
// @Tags Polls
// @Produce json
// @Param id path string true "Poll ID"
// @Success 200 {object} response.Envelope
// @Router /polls/{id}/votes/me [get]
func (h *PollHandler) MyVote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	vote, err := h.polls.MyVote(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vote, nil)
}

// AnsweredPolls godoc
// @Summary List poll ids the caller has voted in
// @Tags Polls
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/votes [get]
func (h *PollHandler) AnsweredPolls(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	answered, err := h.polls.AnsweredPolls(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answered, nil)
}

// Results godoc
// @Summary Tallied poll results
// @Tags Polls
// @Produce json
// @Param id path string true "Poll ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope "Member has not voted yet"
// @Router /polls/{id}/results [get]
func (h *PollHandler) Results(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.polls.Results(c.Request.Context(), c.Param("id"), claims.Identity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
