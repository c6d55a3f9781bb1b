package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-api/internal/notify"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/internal/workflow"
	"github.com/arnavshah/workforce-api/pkg/models"
)

// SubmitRequest files a request for the caller or, for managers, on behalf
// of an employee in their scope
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req struct {
		EmployeeID         string             `json:"employee_id"`
		Type               models.RequestType `json:"type" binding:"required,oneof=leave shift_swap overtime shift_change"`
		StartDate          string             `json:"start_date" binding:"required,isodate"`
		EndDate            string             `json:"end_date" binding:"omitempty,isodate"`
		ShiftID            string             `json:"shift_id"`
		SwapWithEmployeeID string             `json:"swap_with_employee_id"`
		Hours              float64            `json:"hours"`
		Reason             string             `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.Requests.Submit(c.Request.Context(), principal(c), workflow.SubmitInput{
		EmployeeID:         req.EmployeeID,
		Type:               req.Type,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		ShiftID:            req.ShiftID,
		SwapWithEmployeeID: req.SwapWithEmployeeID,
		Hours:              req.Hours,
		Reason:             req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListRequests(c *gin.Context) {
	var q struct {
		Status models.RequestStatus `form:"status" binding:"omitempty,oneof=pending approved rejected"`
		Type   models.RequestType   `form:"type" binding:"omitempty,oneof=leave shift_swap overtime shift_change"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	requests, err := h.Requests.List(c.Request.Context(), principal(c), repository.RequestQuery{Status: q.Status, Type: q.Type})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *Handler) GetRequest(c *gin.Context) {
	r, err := h.Requests.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	r, err := h.Requests.Approve(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// RejectRequest takes an optional {"notes": "..."} body. An absent body and
// an explicit empty note are recorded differently.
func (h *Handler) RejectRequest(c *gin.Context) {
	var req struct {
		Notes *string `json:"notes"`
	}
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.Requests.Reject(c.Request.Context(), principal(c), c.Param("id"), req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
	if err != nil {
		badRequest(c, err)
		return
	}
	list, err := h.Notifier.List(c.Request.Context(), principal(c), unreadOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// SendNotification lets managers message an employee in their scope
func (h *Handler) SendNotification(c *gin.Context) {
	var req struct {
		EmployeeID string                  `json:"employee_id" binding:"required"`
		Type       models.NotificationType `json:"type" binding:"omitempty,oneof=info alert warning success approval"`
		Title      string                  `json:"title" binding:"required,max=200"`
		Message    string                  `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.Notifier.Notify(c.Request.Context(), principal(c), req.EmployeeID, notify.Message{
		Type:  req.Type,
		Title: req.Title,
		Body:  req.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	n, err := h.Notifier.MarkRead(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.Notifier.MarkAllRead(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}
