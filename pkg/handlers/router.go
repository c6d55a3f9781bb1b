package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-api/internal/metrics"
)

const (
	serviceName = "Factory Workforce API"
	version     = "1.0.0"
)

// Router builds the gin engine with every route mounted under the API prefix
func (h *Handler) Router() (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(Recovery(h.Log), AccessLog(h.Log))
	if h.opts.MetricsEnabled {
		r.Use(Metrics())
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": serviceName,
			"version": version,
		})
	})
	r.GET("/health", h.Health)

	prefix := h.opts.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	api := r.Group(prefix)

	login := []gin.HandlerFunc{h.Login}
	if h.opts.LoginRateLimit != "" {
		limit, err := RateLimit(h.opts.LoginRateLimit)
		if err != nil {
			return nil, err
		}
		login = append([]gin.HandlerFunc{limit}, login...)
	}
	api.POST("/auth/login", login...)

	authed := api.Group("")
	authed.Use(h.AuthMiddleware())
	{
		authed.GET("/auth/me", h.Me)

		authed.GET("/divisions", h.ListDivisions)
		authed.POST("/divisions", h.CreateDivision)
		authed.GET("/divisions/:id", h.GetDivision)
		authed.DELETE("/divisions/:id", h.DeleteDivision)

		authed.GET("/departments", h.ListDepartments)
		authed.POST("/departments", h.CreateDepartment)
		authed.GET("/departments/:division_id/:id", h.GetDepartment)
		authed.PUT("/departments/:division_id/:id", h.UpdateDepartment)

		authed.GET("/employees", h.ListEmployees)
		authed.POST("/employees", h.CreateEmployee)
		authed.GET("/employees/:id", h.GetEmployee)
		authed.PUT("/employees/:id", h.UpdateEmployee)
		authed.DELETE("/employees/:id", h.DeactivateEmployee)

		authed.GET("/requests", h.ListRequests)
		authed.POST("/requests", h.SubmitRequest)
		authed.GET("/requests/:id", h.GetRequest)
		authed.PUT("/requests/:id/approve", h.ApproveRequest)
		authed.PUT("/requests/:id/reject", h.RejectRequest)

		authed.GET("/notifications", h.ListNotifications)
		authed.POST("/notifications", h.SendNotification)
		authed.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		authed.PUT("/notifications/:id/read", h.MarkNotificationRead)

		authed.POST("/schedules/generate", h.GenerateSchedule)
		authed.GET("/schedules", h.ListSchedules)
		authed.GET("/schedules/assignments", h.ListAssignments)
		authed.GET("/schedules/export", h.ExportSchedule)
		authed.GET("/schedules/:id", h.GetSchedule)
		authed.PUT("/schedules/:id/approve", h.ApproveSchedule)

		authed.GET("/shifts", h.ListShifts)
		authed.POST("/shifts", h.CreateShift)

		authed.POST("/attendance/check-in", h.CheckIn)
		authed.POST("/attendance/check-out", h.CheckOut)
		authed.GET("/attendance", h.ListAttendance)

		authed.GET("/dashboard/stats", h.DashboardStats)
	}

	return r, nil
}
