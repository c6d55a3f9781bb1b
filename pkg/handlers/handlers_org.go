package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/workforce-api/internal/org"
	"github.com/arnavshah/workforce-api/internal/repository"
	"github.com/arnavshah/workforce-api/pkg/models"
)

func (h *Handler) ListDivisions(c *gin.Context) {
	divisions, err := h.Org.ListDivisions(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"divisions": divisions})
}

func (h *Handler) GetDivision(c *gin.Context) {
	d, err := h.Org.GetDivision(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateDivision(c *gin.Context) {
	var req struct {
		ID          string `json:"id" binding:"required,max=64"`
		Name        string `json:"name" binding:"required,max=200"`
		Color       string `json:"color" binding:"max=32"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.Org.CreateDivision(c.Request.Context(), principal(c), org.DivisionInput{
		ID:          req.ID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// DeleteDivision removes an empty division; ?force=true also removes its
// departments and unplaces its managers
func (h *Handler) DeleteDivision(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	if err := h.Org.DeleteDivision(c.Request.Context(), principal(c), id, force); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Division deleted", "id": id})
}

func (h *Handler) ListDepartments(c *gin.Context) {
	depts, err := h.Org.ListDepartments(c.Request.Context(), principal(c), c.Query("division_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": depts})
}

func (h *Handler) GetDepartment(c *gin.Context) {
	d, err := h.Org.GetDepartment(c.Request.Context(), principal(c), c.Param("division_id"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CreateDepartment takes the division from ?division_id= or the body
func (h *Handler) CreateDepartment(c *gin.Context) {
	var req struct {
		DivisionID  string `json:"division_id"`
		ID          string `json:"id" binding:"required,max=64"`
		Name        string `json:"name" binding:"required,max=200"`
		ManagerID   string `json:"manager_id"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	divisionID := c.DefaultQuery("division_id", req.DivisionID)
	if divisionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "division_id is required", "kind": "BadRequest"})
		return
	}
	d, err := h.Org.CreateDepartment(c.Request.Context(), principal(c), divisionID, org.DepartmentInput{
		ID:          req.ID,
		Name:        req.Name,
		ManagerID:   req.ManagerID,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDepartment(c *gin.Context) {
	var req struct {
		Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
		ManagerID   *string `json:"manager_id"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.Org.UpdateDepartment(c.Request.Context(), principal(c), c.Param("division_id"), c.Param("id"), org.DepartmentUpdate{
		Name:        req.Name,
		ManagerID:   req.ManagerID,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type employeeListQuery struct {
	Search       string `form:"search"`
	DivisionID   string `form:"division_id"`
	DepartmentID string `form:"department_id"`
	Status       string `form:"status" binding:"omitempty,oneof=active inactive"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *Handler) ListEmployees(c *gin.Context) {
	var q employeeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.Org.ListEmployees(c.Request.Context(), principal(c), repository.EmployeeQuery{
		Search:       q.Search,
		DivisionID:   q.DivisionID,
		DepartmentID: q.DepartmentID,
		Status:       q.Status,
		Page:         repository.Page{Page: q.Page, Limit: q.Limit},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	e, err := h.Org.GetEmployee(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// CreateEmployee creates the employee and its login account together
func (h *Handler) CreateEmployee(c *gin.Context) {
	var req struct {
		ID           string           `json:"id" binding:"required,max=64"`
		Username     string           `json:"username" binding:"required,max=100"`
		Password     string           `json:"password" binding:"required"`
		FullName     string           `json:"full_name" binding:"required,max=200"`
		Email        string           `json:"email" binding:"omitempty,email"`
		Role         models.Role      `json:"role" binding:"required,oneof=admin division_manager department_manager employee"`
		DivisionID   string           `json:"division_id" binding:"required"`
		DepartmentID string           `json:"department_id"`
		Position     string           `json:"position"`
		ShiftType    models.ShiftType `json:"shift_type" binding:"omitempty,oneof=morning afternoon night swing"`
		HireDate     string           `json:"hire_date" binding:"omitempty,isodate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.Org.CreateEmployee(c.Request.Context(), principal(c), org.EmployeeInput{
		ID:           req.ID,
		Username:     req.Username,
		Password:     req.Password,
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
		DivisionID:   req.DivisionID,
		DepartmentID: req.DepartmentID,
		Position:     req.Position,
		ShiftType:    req.ShiftType,
		HireDate:     req.HireDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) UpdateEmployee(c *gin.Context) {
	var req struct {
		DepartmentID *string           `json:"department_id"`
		Position     *string           `json:"position"`
		ShiftType    *models.ShiftType `json:"shift_type" binding:"omitempty,oneof=morning afternoon night swing"`
		IsActive     *bool             `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.Org.UpdateEmployee(c.Request.Context(), principal(c), c.Param("id"), org.EmployeeUpdate{
		DepartmentID: req.DepartmentID,
		Position:     req.Position,
		ShiftType:    req.ShiftType,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DeactivateEmployee keeps the record and its history
func (h *Handler) DeactivateEmployee(c *gin.Context) {
	e, err := h.Org.DeactivateEmployee(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
