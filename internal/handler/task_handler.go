package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectdash/internal/model"
	"projectdash/internal/repository"
	"projectdash/internal/service"
)

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

func (h *TaskHandler) ListByProject(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	f := repository.TaskFilter{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssignedTo: queryInt(c, "assigned_to", 0),
	}

	tasks, err := h.tasks.List(c.Request.Context(), Actor(c), projectID, f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type createTaskRequest struct {
	Title          string   `json:"title" binding:"required,max=255"`
	Description    string   `json:"description"`
	Status         string   `json:"status" binding:"required"`
	Priority       string   `json:"priority" binding:"required"`
	AssignedTo     int      `json:"assigned_to" binding:"required"`
	DueDate        string   `json:"due_date" binding:"required"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Participants   []int    `json:"participants"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	due, err := parseDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"due_date": "expected YYYY-MM-DD"},
		})
		return
	}

	in := service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		DueDate:        due,
		EstimatedHours: req.EstimatedHours,
		Participants:   req.Participants,
	}

	t, err := h.tasks.Create(c.Request.Context(), Actor(c), projectID, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": t})
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	t, err := h.tasks.Get(c.Request.Context(), Actor(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": t})
}

type updateTaskRequest struct {
	Title          *string  `json:"title" binding:"omitempty,max=255"`
	Description    *string  `json:"description"`
	Status         *string  `json:"status"`
	Priority       *string  `json:"priority"`
	AssignedTo     *int     `json:"assigned_to"`
	DueDate        *string  `json:"due_date"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Participants   *[]int   `json:"participants"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	upd := model.TaskUpdate{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		EstimatedHours: req.EstimatedHours,
		Participants:   req.Participants,
	}

	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation failed",
				"fields": gin.H{"due_date": "expected YYYY-MM-DD"},
			})
			return
		}
		upd.DueDate = &due
	}

	t, err := h.tasks.Update(c.Request.Context(), Actor(c), id, upd)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": t})
}

type bulkUpdateTasksRequest struct {
	TaskIDs    []int   `json:"task_ids" binding:"required,min=1"`
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	AssignedTo *int    `json:"assigned_to"`
}

func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if req.Status == nil && req.Priority == nil && req.AssignedTo == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": gin.H{"task_ids": "nothing to update"},
		})
		return
	}

	err := h.tasks.BulkUpdate(c.Request.Context(), Actor(c), req.TaskIDs, req.Status, req.Priority, req.AssignedTo)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(req.TaskIDs)})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), Actor(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
