package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clubhub-dev/clubhub-api/internal/service"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
	"github.com/clubhub-dev/clubhub-api/pkg/response"
)

// ScheduleHandler exposes the unified schedule plus appointment and
// task management.
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// Day godoc
// @Summary Merged schedule for one date
// @Tags Schedule
// @Produce json
// @Param date query string true "Date (2006-01-02)"
// @Success 200 {object} response.Envelope
// @Router /schedule/day [get]
func (h *ScheduleHandler) Day(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required as 2006-01-02"))
		return
	}
	items, badge, err := h.schedule.DayView(c.Request.Context(), date, identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"items": items, "badge": badge}, nil)
}

// Month godoc
// @Summary Badges for every non-empty day of a month
// @Tags Schedule
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /schedule/month [get]
func (h *ScheduleHandler) Month(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year query parameter is required"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month query parameter must be 1-12"))
		return
	}
	overview, err := h.schedule.MonthOverview(c.Request.Context(), year, time.Month(month), identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// ListAppointments godoc
// @Summary List scheduled events
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/appointments [get]
func (h *ScheduleHandler) ListAppointments(c *gin.Context) {
	appts, err := h.schedule.ListAppointments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, nil)
}

// CreateAppointment godoc
// @Summary Schedule an event
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Router /schedule/appointments [post]
func (h *ScheduleHandler) CreateAppointment(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	appt, err := h.schedule.CreateAppointment(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// UpdateAppointment godoc
// @Summary Update an event
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.CreateAppointmentRequest true "Appointment payload"
// @Success 200 {object} response.Envelope
// @Router /schedule/appointments/{id} [put]
func (h *ScheduleHandler) UpdateAppointment(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appt, err := h.schedule.UpdateAppointment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// DeleteAppointment godoc
// @Summary Delete an event
// @Tags Schedule
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /schedule/appointments/{id} [delete]
func (h *ScheduleHandler) DeleteAppointment(c *gin.Context) {
	if err := h.schedule.DeleteAppointment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteAllAppointments godoc
// @Summary Delete every scheduled event
// @Tags Schedule
// @Produce json
// @Success 204
// @Router /schedule/appointments [delete]
func (h *ScheduleHandler) DeleteAllAppointments(c *gin.Context) {
	if err := h.schedule.DeleteAllAppointments(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTasks godoc
// @Summary List tasks visible to the caller
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks [get]
func (h *ScheduleHandler) ListTasks(c *gin.Context) {
	tasks, err := h.schedule.ListTasks(c.Request.Context(), identityFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}

// CreateTask godoc
// @Summary Create a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body service.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Router /tasks [post]
func (h *ScheduleHandler) CreateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.schedule.CreateTask(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.CreateTaskRequest true "Task payload"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id} [put]
func (h *ScheduleHandler) UpdateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.schedule.UpdateTask(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// TaskDoneRequest toggles a task's completion flag.
type TaskDoneRequest struct {
	Done bool `json:"done"`
}

// SetTaskDone godoc
// @Summary Mark a task done or not done
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body TaskDoneRequest true "Done flag"
// @Success 204
// @Router /tasks/{id}/done [put]
func (h *ScheduleHandler) SetTaskDone(c *gin.Context) {
	var req TaskDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.schedule.SetTaskDone(c.Request.Context(), c.Param("id"), req.Done); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 204
// @Router /tasks/{id} [delete]
func (h *ScheduleHandler) DeleteTask(c *gin.Context) {
	if err := h.schedule.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
