package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-api/internal/schedule"
	"github.com/arnavshah/workforce-api/pkg/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GenerateSchedule resolves assignments for a period. When some employees
// cannot be scheduled the partial result is returned with the error.
func (h *Handler) GenerateSchedule(c *gin.Context) {
	var req struct {
		StartDate    string `json:"start_date" binding:"required,isodate"`
		EndDate      string `json:"end_date" binding:"required,isodate"`
		DivisionID   string `json:"division_id"`
		DepartmentID string `json:"department_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.Schedules.Generate(c.Request.Context(), principal(c), schedule.GenerateInput{
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		DivisionID:   req.DivisionID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		if result != nil && errors.Is(err, models.ErrIncompleteSchedule) {
			h.respondErrorWith(c, err, result)
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	list, err := h.Schedules.List(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": list})
}

func (h *Handler) GetSchedule(c *gin.Context) {
	detail, err := h.Schedules.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) ApproveSchedule(c *gin.Context) {
	sch, err := h.Schedules.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sch)
}

type assignmentQuery struct {
	StartDate    string `form:"start_date" binding:"omitempty,isodate"`
	EndDate      string `form:"end_date" binding:"omitempty,isodate"`
	EmployeeID   string `form:"employee_id"`
	DivisionID   string `form:"division_id"`
	DepartmentID string `form:"department_id"`
}

func (q assignmentQuery) toService() schedule.AssignmentQuery {
	return schedule.AssignmentQuery{
		From:         q.StartDate,
		To:           q.EndDate,
		EmployeeID:   q.EmployeeID,
		DivisionID:   q.DivisionID,
		DepartmentID: q.DepartmentID,
	}
}

func (h *Handler) ListAssignments(c *gin.Context) {
	var q assignmentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	rows, err := h.Schedules.Assignments(c.Request.Context(), principal(c), q.toService())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": rows})
}

// ExportSchedule streams the readable assignments of a period as an xlsx file
func (h *Handler) ExportSchedule(c *gin.Context) {
	var q assignmentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.StartDate == "" || q.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required", "kind": "BadRequest"})
		return
	}

	var buf bytes.Buffer
	if err := h.Schedules.Export(c.Request.Context(), principal(c), q.toService(), &buf); err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("schedule_%s_%s.xlsx", q.StartDate, q.EndDate)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) ListShifts(c *gin.Context) {
	shifts, err := h.Schedules.Shifts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

func (h *Handler) CreateShift(c *gin.Context) {
	var req struct {
		ID            string           `json:"id" binding:"required,max=64"`
		Name          string           `json:"name" binding:"required,max=100"`
		Type          models.ShiftType `json:"type" binding:"required,oneof=morning afternoon night swing"`
		StartTime     string           `json:"start_time" binding:"required,clock"`
		EndTime       string           `json:"end_time" binding:"required,clock"`
		DurationHours float64          `json:"duration_hours" binding:"gte=0,lte=24"`
		Color         string           `json:"color" binding:"max=32"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sh, err := h.Schedules.CreateShift(c.Request.Context(), principal(c), schedule.ShiftInput{
		ID:            req.ID,
		Name:          req.Name,
		Type:          req.Type,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		DurationHours: req.DurationHours,
		Color:         req.Color,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}
