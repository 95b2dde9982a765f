package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectdash/internal/model"
	"projectdash/internal/repository"
	"projectdash/internal/service"
)

type ProjectHandler struct {
	projects *service.ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// projectFilter parses the listing query parameters. status and priority
// accept comma-separated values.
func projectFilter(c *gin.Context) (repository.ProjectFilter, error) {
	f := repository.ProjectFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      queryInt(c, "page", 1),
		PerPage:   queryInt(c, "per_page", 0),
	}
	if raw := c.Query("status"); raw != "" {
		f.Statuses = strings.Split(raw, ",")
	}
	if raw := c.Query("priority"); raw != "" {
		f.Priorities = strings.Split(raw, ",")
	}

	var err error
	if f.StartDateFrom, err = parseDatePtr(c.Query("start_date_from")); err != nil {
		return f, err
	}
	if f.StartDateTo, err = parseDatePtr(c.Query("start_date_to")); err != nil {
		return f, err
	}
	if f.EndDateFrom, err = parseDatePtr(c.Query("end_date_from")); err != nil {
		return f, err
	}
	f.EndDateTo, err = parseDatePtr(c.Query("end_date_to"))
	return f, err
}

func (h *ProjectHandler) List(c *gin.Context) {
	f, err := projectFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date filter, expected YYYY-MM-DD"})
		return
	}

	views, page, err := h.projects.List(c.Request.Context(), Actor(c), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": views, "pagination": page})
}

func (h *ProjectHandler) My(c *gin.Context) {
	f, err := projectFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date filter, expected YYYY-MM-DD"})
		return
	}

	views, page, err := h.projects.My(c.Request.Context(), Actor(c), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": views, "pagination": page})
}

type createProjectRequest struct {
	Name             string  `json:"name" binding:"required,max=255"`
	Description      string  `json:"description"`
	Status           string  `json:"status" binding:"required"`
	Priority         string  `json:"priority" binding:"required"`
	StartDate        string  `json:"start_date" binding:"required"`
	EndDate          string  `json:"end_date" binding:"required"`
	ActualEndDate    string  `json:"actual_end_date"`
	Progress         int     `json:"progress"`
	Budget           float64 `json:"budget"`
	ClientName       string  `json:"client_name"`
	Notes            string  `json:"notes"`
	ProjectManagerID int     `json:"project_manager_id"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	in := service.CreateProjectInput{
		Name:             req.Name,
		Description:      req.Description,
		Status:           req.Status,
		Priority:         req.Priority,
		Progress:         req.Progress,
		Budget:           req.Budget,
		ClientName:       req.ClientName,
		Notes:            req.Notes,
		ProjectManagerID: req.ProjectManagerID,
	}

	var err error
	if in.StartDate, err = parseDate(req.StartDate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"start_date": "expected YYYY-MM-DD"},
		})
		return
	}
	if in.EndDate, err = parseDate(req.EndDate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"end_date": "expected YYYY-MM-DD"},
		})
		return
	}
	if in.ActualEndDate, err = parseDatePtr(req.ActualEndDate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"actual_end_date": "expected YYYY-MM-DD"},
		})
		return
	}

	view, err := h.projects.Create(c.Request.Context(), Actor(c), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"project": view})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.projects.Get(c.Request.Context(), Actor(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": view})
}

type updateProjectRequest struct {
	Name          *string  `json:"name" binding:"omitempty,max=255"`
	Description   *string  `json:"description"`
	Status        *string  `json:"status"`
	Priority      *string  `json:"priority"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	ActualEndDate *string  `json:"actual_end_date"`
	Progress      *int     `json:"progress"`
	Budget        *float64 `json:"budget"`
	ClientName    *string  `json:"client_name"`
	Notes         *string  `json:"notes"`
}

// Update serves both PUT and PATCH; absent fields keep their stored values
// either way.
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	upd := model.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Progress:    req.Progress,
		Budget:      req.Budget,
		ClientName:  req.ClientName,
		Notes:       req.Notes,
	}

	var err error
	if req.StartDate != nil {
		if upd.StartDate, err = parseDatePtr(*req.StartDate); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation failed",
				"fields": gin.H{"start_date": "expected YYYY-MM-DD"},
			})
			return
		}
	}
	if req.EndDate != nil {
		if upd.EndDate, err = parseDatePtr(*req.EndDate); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation failed",
				"fields": gin.H{"end_date": "expected YYYY-MM-DD"},
			})
			return
		}
	}
	if req.ActualEndDate != nil {
		if upd.ActualEndDate, err = parseDatePtr(*req.ActualEndDate); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation failed",
				"fields": gin.H{"actual_end_date": "expected YYYY-MM-DD"},
			})
			return
		}
	}

	view, err := h.projects.Update(c.Request.Context(), Actor(c), id, upd)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": view})
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.projects.Delete(c.Request.Context(), Actor(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
