package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/repository"
	"projectdash/pkg/rbac"
)

// TaskStore is the persistence surface the task service needs.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id int) (*model.Task, error)
	ListByProject(ctx context.Context, projectID int, f repository.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, id int, upd model.TaskUpdate) (*model.Task, error)
	BulkUpdate(ctx context.Context, ids []int, status, priority *string, assignedTo *int) error
	Delete(ctx context.Context, id int) error
}

// ProjectMembership resolves the facts task authorization needs about the
// parent project.
type ProjectMembership interface {
	GetByID(ctx context.Context, id int) (*model.Project, error)
	IsMember(ctx context.Context, projectID, userID int) (bool, error)
}

type TaskService struct {
	tasks    TaskStore
	projects ProjectMembership
	users    UserFinder
	logger   *zap.Logger
}

func NewTaskService(tasks TaskStore, projects ProjectMembership, users UserFinder, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		projects: projects,
		users:    users,
		logger:   logger,
	}
}

// CreateTaskInput is a task create payload.
type CreateTaskInput struct {
	Title          string
	Description    string
	Status         string
	Priority       string
	AssignedTo     int
	DueDate        time.Time
	EstimatedHours *float64
	Participants   []int
}

func (in *CreateTaskInput) validate() error {
	fields := map[string]string{}
	if !model.ValidTaskStatus(in.Status) {
		fields["status"] = "must be one of todo, doing, done"
	}
	if !model.ValidTaskPriority(in.Priority) {
		fields["priority"] = "must be one of low, medium, high"
	}
	if in.EstimatedHours != nil && (*in.EstimatedHours < 0 || *in.EstimatedHours > 1000) {
		fields["estimated_hours"] = "must be between 0 and 1000"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// List returns the tasks of a project, optionally filtered by status,
// priority or assignee.
func (s *TaskService) List(ctx context.Context, actor *model.User, projectID int, f repository.TaskFilter) ([]model.Task, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID, f)
}

// Create adds a task to a project. Only admins and project managers may
// create tasks; the actor becomes the task's creator.
func (s *TaskService) Create(ctx context.Context, actor *model.User, projectID int, in CreateTaskInput) (*model.Task, error) {
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionCreate, rbac.Subject{Resource: rbac.ResourceTask}); err != nil {
		return nil, err
	}

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, in.AssignedTo); err != nil {
		if err == apperr.ErrNotFound {
			return nil, apperr.NewValidation("assigned_to", "user does not exist")
		}
		return nil, err
	}

	t := &model.Task{
		ProjectID:      projectID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		AssignedTo:     in.AssignedTo,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		CreatedBy:      actor.ID,
		Participants:   in.Participants,
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one task. Developers only see tasks assigned to them.
func (s *TaskService) Get(ctx context.Context, actor *model.User, id int) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	subject := rbac.Subject{
		Resource:   rbac.ResourceTask,
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
	}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionView, subject); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies a partial task update. Admins may update any task, a
// project manager only tasks in projects whose team they belong to, and a
// developer only tasks assigned to them.
func (s *TaskService) Update(ctx context.Context, actor *model.User, id int, upd model.TaskUpdate) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	member := false
	if actor.IsProjectManager() {
		member, err = s.projects.IsMember(ctx, t.ProjectID, actor.ID)
		if err != nil {
			return nil, err
		}
	}
	subject := rbac.Subject{
		Resource:   rbac.ResourceTask,
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
		TeamMember: member,
	}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionUpdate, subject); err != nil {
		return nil, err
	}

	if err := validateTaskUpdate(&upd); err != nil {
		return nil, err
	}

	if upd.AssignedTo != nil {
		if _, err := s.users.FindByID(ctx, *upd.AssignedTo); err != nil {
			if err == apperr.ErrNotFound {
				return nil, apperr.NewValidation("assigned_to", "user does not exist")
			}
			return nil, err
		}
	}

	return s.tasks.Update(ctx, id, upd)
}

func validateTaskUpdate(upd *model.TaskUpdate) error {
	fields := map[string]string{}
	if upd.Status != nil && !model.ValidTaskStatus(*upd.Status) {
		fields["status"] = "must be one of todo, doing, done"
	}
	if upd.Priority != nil && !model.ValidTaskPriority(*upd.Priority) {
		fields["priority"] = "must be one of low, medium, high"
	}
	if upd.EstimatedHours != nil && (*upd.EstimatedHours < 0 || *upd.EstimatedHours > 1000) {
		fields["estimated_hours"] = "must be between 0 and 1000"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// BulkUpdate applies the same status/priority/assignee patch to a set of
// tasks. Restricted to admins and project managers.
func (s *TaskService) BulkUpdate(ctx context.Context, actor *model.User, ids []int, status, priority *string, assignedTo *int) error {
	if !actor.IsAdmin() && !actor.IsProjectManager() {
		return &rbac.DeniedError{Role: actor.Role, Action: rbac.ActionUpdate, Resource: rbac.ResourceTask}
	}

	fields := map[string]string{}
	if status != nil && !model.ValidTaskStatus(*status) {
		fields["status"] = "must be one of todo, doing, done"
	}
	if priority != nil && !model.ValidTaskPriority(*priority) {
		fields["priority"] = "must be one of low, medium, high"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}

	return s.tasks.BulkUpdate(ctx, ids, status, priority, assignedTo)
}

// Delete removes a task. Admin only.
func (s *TaskService) Delete(ctx context.Context, actor *model.User, id int) error {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	subject := rbac.Subject{
		Resource:   rbac.ResourceTask,
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
	}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionDelete, subject); err != nil {
		return err
	}

	return s.tasks.Delete(ctx, id)
}
