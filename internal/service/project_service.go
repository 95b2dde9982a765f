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

// ProjectStore is the persistence surface the project service needs. The
// concrete repository guarantees that multi-step methods (Create, Update,
// SoftDeleteCascade) are atomic.
type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id int) (*model.Project, error)
	List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error)
	ListForUser(ctx context.Context, userID int, f repository.ProjectFilter) ([]model.Project, int, error)
	Update(ctx context.Context, id int, upd model.ProjectUpdate, completed bool) (*model.Project, error)
	SetProgress(ctx context.Context, id, progress int) error
	SoftDeleteCascade(ctx context.Context, id int) error
	IsMember(ctx context.Context, projectID, userID int) (bool, error)
	TaskStats(ctx context.Context, projectID int) (model.TaskStats, error)
}

// UserFinder resolves referenced user ids.
type UserFinder interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
}

// ProjectView is a project response enriched with the derived read-model
// fields.
type ProjectView struct {
	model.Project
	ProgressPercentage int              `json:"progress_percentage"`
	DaysRemaining      int              `json:"days_remaining"`
	IsOverdue          bool             `json:"is_overdue"`
	FormattedBudget    string           `json:"formatted_budget"`
	TaskStats          *model.TaskStats `json:"task_stats,omitempty"`
}

type ProjectService struct {
	projects ProjectStore
	users    UserFinder
	logger   *zap.Logger
	now      func() time.Time
}

func NewProjectService(projects ProjectStore, users UserFinder, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projects: projects,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ProjectService) view(p *model.Project, stats model.TaskStats, withStats bool) *ProjectView {
	now := s.now()
	v := &ProjectView{
		Project:            *p,
		ProgressPercentage: p.ProgressPercentage(stats),
		DaysRemaining:      p.DaysRemaining(now),
		IsOverdue:          p.IsOverdue(now),
		FormattedBudget:    p.FormattedBudget(),
	}
	if withStats {
		st := stats
		v.TaskStats = &st
	}
	return v
}

// CreateProjectInput is a validated-enough create payload; cross-field and
// enum checks happen here.
type CreateProjectInput struct {
	Name             string
	Description      string
	Status           string
	Priority         string
	StartDate        time.Time
	EndDate          time.Time
	ActualEndDate    *time.Time
	Progress         int
	Budget           float64
	ClientName       string
	Notes            string
	ProjectManagerID int
}

func (in *CreateProjectInput) validate() error {
	fields := map[string]string{}
	if !model.ValidProjectStatus(in.Status) {
		fields["status"] = "must be one of planned, in_progress, on_hold, completed, cancelled"
	}
	if !model.ValidProjectPriority(in.Priority) {
		fields["priority"] = "must be one of low, medium, high, critical"
	}
	if !in.EndDate.After(in.StartDate) {
		fields["end_date"] = "must be after start_date"
	}
	if in.ActualEndDate != nil && in.ActualEndDate.Before(in.StartDate) {
		fields["actual_end_date"] = "must not be before start_date"
	}
	if in.Progress < 0 || in.Progress > 100 {
		fields["progress"] = "must be between 0 and 100"
	}
	if in.Budget < 0 {
		fields["budget"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// Create makes a new project. A project manager actor is always assigned
// as the project's manager regardless of the payload; the manager joins
// the team in the same transaction as the insert.
func (s *ProjectService) Create(ctx context.Context, actor *model.User, in CreateProjectInput) (*ProjectView, error) {
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionCreate, rbac.Subject{Resource: rbac.ResourceProject}); err != nil {
		return nil, err
	}

	if actor.IsProjectManager() {
		in.ProjectManagerID = actor.ID
	}

	in.Status = model.NormalizeProjectStatus(in.Status)
	if err := in.validate(); err != nil {
		return nil, err
	}

	if in.ProjectManagerID == 0 {
		return nil, apperr.NewValidation("project_manager_id", "is required")
	}
	if _, err := s.users.FindByID(ctx, in.ProjectManagerID); err != nil {
		if err == apperr.ErrNotFound {
			return nil, apperr.NewValidation("project_manager_id", "user does not exist")
		}
		return nil, err
	}

	p := &model.Project{
		Name:             in.Name,
		Description:      in.Description,
		Status:           in.Status,
		Priority:         in.Priority,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		ActualEndDate:    in.ActualEndDate,
		Progress:         in.Progress,
		Budget:           in.Budget,
		ClientName:       in.ClientName,
		Notes:            in.Notes,
		ProjectManagerID: in.ProjectManagerID,
		CreatedBy:        actor.ID,
	}

	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}

	return s.view(p, model.TaskStats{}, false), nil
}

// List returns a page of projects. Listing granularity is open to any
// authenticated user; derived fields use the stored progress only.
func (s *ProjectService) List(ctx context.Context, actor *model.User, f repository.ProjectFilter) ([]*ProjectView, repository.Page, error) {
	f.Normalize()
	projects, total, err := s.projects.List(ctx, f)
	if err != nil {
		return nil, repository.Page{}, err
	}
	return s.views(projects), s.page(total, f), nil
}

// My returns the projects where the actor is creator, manager or team
// member.
func (s *ProjectService) My(ctx context.Context, actor *model.User, f repository.ProjectFilter) ([]*ProjectView, repository.Page, error) {
	f.Normalize()
	projects, total, err := s.projects.ListForUser(ctx, actor.ID, f)
	if err != nil {
		return nil, repository.Page{}, err
	}
	return s.views(projects), s.page(total, f), nil
}

func (s *ProjectService) views(projects []model.Project) []*ProjectView {
	out := make([]*ProjectView, len(projects))
	for i := range projects {
		out[i] = s.view(&projects[i], model.TaskStats{}, false)
	}
	return out
}

func (s *ProjectService) page(total int, f repository.ProjectFilter) repository.Page {
	return repository.NewPage(total, f.PerPage, f.Page)
}

// Get returns one project with task stats and derived fields. When the
// stored progress is zero and tasks exist, the task completion ratio is
// recomputed and persisted before the response is built.
func (s *ProjectService) Get(ctx context.Context, actor *model.User, id int) (*ProjectView, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	member := false
	if actor.IsDeveloper() {
		member, err = s.projects.IsMember(ctx, id, actor.ID)
		if err != nil {
			return nil, err
		}
	}
	subject := rbac.Subject{
		Resource:   rbac.ResourceProject,
		CreatedBy:  p.CreatedBy,
		TeamMember: member,
	}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionView, subject); err != nil {
		return nil, err
	}

	stats, err := s.projects.TaskStats(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Progress == 0 && stats.Total > 0 {
		pct := p.ProgressPercentage(stats)
		if err := s.projects.SetProgress(ctx, id, pct); err != nil {
			return nil, err
		}
		p.Progress = pct
		s.logger.Debug("Persisted recomputed project progress",
			zap.Int("project_id", id),
			zap.Int("progress", pct),
		)
	}

	return s.view(p, stats, true), nil
}

// Update applies a full or partial update. Completing a project without an
// explicit actual_end_date stamps it and forces progress to 100; the store
// applies the row change and the resulting events atomically.
func (s *ProjectService) Update(ctx context.Context, actor *model.User, id int, upd model.ProjectUpdate) (*ProjectView, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	subject := rbac.Subject{Resource: rbac.ResourceProject, CreatedBy: p.CreatedBy}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionUpdate, subject); err != nil {
		return nil, err
	}

	if upd.Status != nil {
		normalized := model.NormalizeProjectStatus(*upd.Status)
		upd.Status = &normalized
	}
	if err := validateProjectUpdate(&upd); err != nil {
		return nil, err
	}

	completed := upd.ApplyCompletionSideEffects(s.now())

	updated, err := s.projects.Update(ctx, id, upd, completed)
	if err != nil {
		return nil, err
	}

	stats, err := s.projects.TaskStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(updated, stats, true), nil
}

func validateProjectUpdate(upd *model.ProjectUpdate) error {
	fields := map[string]string{}
	if upd.Status != nil && !model.ValidProjectStatus(*upd.Status) {
		fields["status"] = "must be one of planned, in_progress, on_hold, completed, cancelled"
	}
	if upd.Priority != nil && !model.ValidProjectPriority(*upd.Priority) {
		fields["priority"] = "must be one of low, medium, high, critical"
	}
	if upd.StartDate != nil && upd.EndDate != nil && !upd.EndDate.After(*upd.StartDate) {
		fields["end_date"] = "must be after start_date"
	}
	if upd.Progress != nil && (*upd.Progress < 0 || *upd.Progress > 100) {
		fields["progress"] = "must be between 0 and 100"
	}
	if upd.Budget != nil && *upd.Budget < 0 {
		fields["budget"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// Delete soft-deletes the project and cascades a hard delete of its tasks
// in one transaction.
func (s *ProjectService) Delete(ctx context.Context, actor *model.User, id int) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}

	subject := rbac.Subject{Resource: rbac.ResourceProject, CreatedBy: p.CreatedBy}
	if err := rbac.Authorize(actor.Role, actor.ID, rbac.ActionDelete, subject); err != nil {
		return err
	}

	return s.projects.SoftDeleteCascade(ctx, id)
}
