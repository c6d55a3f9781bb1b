package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-api/internal/attendance"
)

// DashboardStats returns today's figures for the caller's area
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.Org.Stats(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type attendanceBody struct {
	EmployeeID string `json:"employee_id"`
	Notes      string `json:"notes" binding:"max=500"`
}

// bindOptional binds a JSON body that may be absent
func bindOptional(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req attendanceBody
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.Attendance.CheckIn(c.Request.Context(), principal(c), req.EmployeeID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) CheckOut(c *gin.Context) {
	var req attendanceBody
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.Attendance.CheckOut(c.Request.Context(), principal(c), req.EmployeeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListAttendance returns the readable records of a period with totals
func (h *Handler) ListAttendance(c *gin.Context) {
	var q struct {
		StartDate    string `form:"start_date" binding:"omitempty,isodate"`
		EndDate      string `form:"end_date" binding:"omitempty,isodate"`
		DivisionID   string `form:"division_id"`
		DepartmentID string `form:"department_id"`
		EmployeeID   string `form:"employee_id"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	report, err := h.Attendance.List(c.Request.Context(), principal(c), attendance.Query{
		From:         q.StartDate,
		To:           q.EndDate,
		DivisionID:   q.DivisionID,
		DepartmentID: q.DepartmentID,
		EmployeeID:   q.EmployeeID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
