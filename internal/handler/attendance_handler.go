package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clubhub-dev/clubhub-api/internal/service"
	appErrors "github.com/clubhub-dev/clubhub-api/pkg/errors"
	"github.com/clubhub-dev/clubhub-api/pkg/export"
	"github.com/clubhub-dev/clubhub-api/pkg/response"
)

// AttendanceHandler exposes the meeting ledger endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	exports    *service.ExportService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, exports *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, exports: exports}
}

// Snapshot godoc
// @Summary Working snapshot for a meeting date
// @Tags Attendance
// @Produce json
// @Param date query string true "Meeting date (2006-01-02)"
// @Success 200 {object} response.Envelope
// @Router /attendance/snapshot [get]
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required as 2006-01-02"))
		return
	}
	entries, err := h.attendance.WorkingSnapshot(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats := service.ComputeSnapshotStats(entries)
	response.JSON(c, http.StatusOK, gin.H{"entries": entries, "stats": stats}, nil)
}

// Save godoc
// @Summary Save a meeting snapshot
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.SaveMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope "Date already recorded; retry with confirm"
// @Router /attendance/meetings [post]
func (h *AttendanceHandler) Save(c *gin.Context) {
	var req service.SaveMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if c.Query("confirm") == "true" {
		req.Confirm = true
	}
	record, err := h.attendance.SaveMeeting(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// History godoc
// @Summary List saved meetings
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/meetings [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	records, err := h.attendance.History(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Delete godoc
// @Summary Delete a saved meeting
// @Tags Attendance
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 204
// @Router /attendance/meetings/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.attendance.DeleteMeeting(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Rollup godoc
// @Summary Per-student attendance rollup
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/rollup [get]
func (h *AttendanceHandler) Rollup(c *gin.Context) {
	rollup, err := h.attendance.Rollup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rollup, nil)
}

// Stats godoc
// @Summary Snapshot statistics for a date
// @Tags Attendance
// @Produce json
// @Param date query string true "Meeting date (2006-01-02)"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required as 2006-01-02"))
		return
	}
	stats, err := h.attendance.StatsForDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// SearchStudent godoc
// @Summary Attendance history for a stored name
// @Tags Attendance
// @Produce json
// @Param name query string true "Exact stored name"
// @Success 200 {object} response.Envelope
// @Router /attendance/search/student [get]
func (h *AttendanceHandler) SearchStudent(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "name query parameter is required"))
		return
	}
	hits, err := h.attendance.SearchStudent(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hits, nil)
}

// SearchDate godoc
// @Summary Statuses recorded on a date
// @Tags Attendance
// @Produce json
// @Param date query string true "Meeting date (2006-01-02)"
// @Success 200 {object} response.Envelope
// @Router /attendance/search/date [get]
func (h *AttendanceHandler) SearchDate(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter is required as 2006-01-02"))
		return
	}
	hits, err := h.attendance.SearchDate(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hits, nil)
}

// ExportCSV godoc
// @Summary Download the rollup as CSV
// @Tags Attendance
// @Produce text/csv
// @Success 200
// @Router /attendance/rollup/export/csv [get]
func (h *AttendanceHandler) ExportCSV(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	payload, err := h.exports.RollupCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename("attendance-rollup", "csv")))
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportPDF godoc
// @Summary Download the rollup as PDF
// @Tags Attendance
// @Produce application/pdf
// @Success 200
// @Router /attendance/rollup/export/pdf [get]
func (h *AttendanceHandler) ExportPDF(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	payload, err := h.exports.RollupPDF(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename("attendance-rollup", "pdf")))
	c.Data(http.StatusOK, "application/pdf", payload)
}
