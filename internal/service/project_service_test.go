package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/repository"
	"projectdash/pkg/rbac"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newProjectService(projects *fakeProjects, users *fakeUsers, now time.Time) *ProjectService {
	s := NewProjectService(projects, users, testLogger())
	s.now = func() time.Time { return now }
	return s
}

func validCreateInput(managerID int) CreateProjectInput {
	return CreateProjectInput{
		Name:             "Website relaunch",
		Status:           model.ProjectStatusPlanned,
		Priority:         model.PriorityHigh,
		StartDate:        date(2026, time.January, 1),
		EndDate:          date(2026, time.June, 30),
		Budget:           50000,
		ProjectManagerID: managerID,
	}
}

func TestProjectCreateForcesManagerForPM(t *testing.T) {
	manager := pm(2)
	other := pm(9)
	users := newFakeUsers(manager, other)
	projects := newFakeProjects()
	s := newProjectService(projects, users, date(2026, time.January, 15))

	in := validCreateInput(other.ID)
	view, err := s.Create(context.Background(), manager, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if view.ProjectManagerID != manager.ID {
		t.Errorf("manager = %d, want actor %d", view.ProjectManagerID, manager.ID)
	}
	if view.CreatedBy != manager.ID {
		t.Errorf("created_by = %d, want %d", view.CreatedBy, manager.ID)
	}
	member, _ := projects.IsMember(context.Background(), view.ID, manager.ID)
	if !member {
		t.Error("manager should join the team on create")
	}
}

func TestProjectCreateAdminKeepsPayloadManager(t *testing.T) {
	manager := pm(2)
	users := newFakeUsers(admin(1), manager)
	s := newProjectService(newFakeProjects(), users, date(2026, time.January, 15))

	view, err := s.Create(context.Background(), admin(1), validCreateInput(manager.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if view.ProjectManagerID != manager.ID {
		t.Errorf("manager = %d, want %d", view.ProjectManagerID, manager.ID)
	}
}

func TestProjectCreateDeveloperForbidden(t *testing.T) {
	users := newFakeUsers(dev(3))
	s := newProjectService(newFakeProjects(), users, date(2026, time.January, 15))

	_, err := s.Create(context.Background(), dev(3), validCreateInput(3))
	var denied *rbac.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected denial, got %v", err)
	}
}

func TestProjectCreateValidation(t *testing.T) {
	manager := pm(2)
	users := newFakeUsers(admin(1), manager)
	s := newProjectService(newFakeProjects(), users, date(2026, time.January, 15))

	t.Run("pending normalizes to planned", func(t *testing.T) {
		in := validCreateInput(manager.ID)
		in.Status = "pending"
		view, err := s.Create(context.Background(), admin(1), in)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if view.Status != model.ProjectStatusPlanned {
			t.Errorf("status = %q, want planned", view.Status)
		}
	})

	t.Run("end before start rejected", func(t *testing.T) {
		in := validCreateInput(manager.ID)
		in.EndDate = in.StartDate.AddDate(0, 0, -1)
		_, err := s.Create(context.Background(), admin(1), in)
		ve, ok := apperr.IsValidation(err)
		if !ok {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := ve.Fields["end_date"]; !ok {
			t.Errorf("expected end_date violation, got %v", ve.Fields)
		}
	})

	t.Run("unknown manager rejected", func(t *testing.T) {
		in := validCreateInput(404)
		_, err := s.Create(context.Background(), admin(1), in)
		ve, ok := apperr.IsValidation(err)
		if !ok {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := ve.Fields["project_manager_id"]; !ok {
			t.Errorf("expected project_manager_id violation, got %v", ve.Fields)
		}
	})

	t.Run("missing manager rejected for admin", func(t *testing.T) {
		in := validCreateInput(0)
		_, err := s.Create(context.Background(), admin(1), in)
		if _, ok := apperr.IsValidation(err); !ok {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestProjectGetDeveloperAccess(t *testing.T) {
	p := &model.Project{
		ID: 1, Name: "Internal tool", Status: model.ProjectStatusInProgress,
		EndDate: date(2026, time.December, 31), CreatedBy: 1, ProjectManagerID: 2,
	}
	projects := newFakeProjects(p)
	users := newFakeUsers(dev(5), dev(6))
	s := newProjectService(projects, users, date(2026, time.March, 1))

	projects.addMember(1, 5)

	if _, err := s.Get(context.Background(), dev(5), 1); err != nil {
		t.Errorf("team member should see the project: %v", err)
	}

	_, err := s.Get(context.Background(), dev(6), 1)
	var denied *rbac.DeniedError
	if !errors.As(err, &denied) {
		t.Errorf("non-member developer should be denied, got %v", err)
	}
}

func TestProjectGetLazyProgressRecompute(t *testing.T) {
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusInProgress,
		EndDate: date(2026, time.December, 31), CreatedBy: 1, ProjectManagerID: 2,
	}
	projects := newFakeProjects(p)
	projects.stats[1] = model.TaskStats{Total: 4, Done: 3, Doing: 1}
	s := newProjectService(projects, newFakeUsers(admin(1)), date(2026, time.March, 1))

	view, err := s.Get(context.Background(), admin(1), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if len(projects.setProgressCalls) != 1 {
		t.Fatalf("SetProgress calls = %d, want 1", len(projects.setProgressCalls))
	}
	if call := projects.setProgressCalls[0]; call.id != 1 || call.progress != 75 {
		t.Errorf("SetProgress(%d, %d), want (1, 75)", call.id, call.progress)
	}
	if view.Progress != 75 || view.ProgressPercentage != 75 {
		t.Errorf("view progress = %d/%d, want 75", view.Progress, view.ProgressPercentage)
	}
	if view.TaskStats == nil || view.TaskStats.Done != 3 {
		t.Errorf("task stats missing from detail view: %+v", view.TaskStats)
	}
}

func TestProjectGetStoredProgressNotRecomputed(t *testing.T) {
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusInProgress, Progress: 40,
		EndDate: date(2026, time.December, 31), CreatedBy: 1, ProjectManagerID: 2,
	}
	projects := newFakeProjects(p)
	projects.stats[1] = model.TaskStats{Total: 4, Done: 4}
	s := newProjectService(projects, newFakeUsers(admin(1)), date(2026, time.March, 1))

	view, err := s.Get(context.Background(), admin(1), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(projects.setProgressCalls) != 0 {
		t.Error("stored nonzero progress must not be recomputed")
	}
	if view.ProgressPercentage != 40 {
		t.Errorf("progress = %d, want stored 40", view.ProgressPercentage)
	}
}

func TestProjectUpdateCompletion(t *testing.T) {
	now := date(2026, time.May, 10)
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusInProgress, Progress: 80,
		EndDate: date(2026, time.June, 1), CreatedBy: 2, ProjectManagerID: 2,
	}
	projects := newFakeProjects(p)
	s := newProjectService(projects, newFakeUsers(pm(2)), now)

	status := model.ProjectStatusCompleted
	view, err := s.Update(context.Background(), pm(2), 1, model.ProjectUpdate{Status: &status})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if !projects.lastCompleted {
		t.Error("store should see the completion flag")
	}
	if projects.lastUpdate.ActualEndDate == nil || !projects.lastUpdate.ActualEndDate.Equal(now) {
		t.Errorf("actual_end_date = %v, want %v", projects.lastUpdate.ActualEndDate, now)
	}
	if projects.lastUpdate.Progress == nil || *projects.lastUpdate.Progress != 100 {
		t.Errorf("progress = %v, want forced 100", projects.lastUpdate.Progress)
	}
	if view.Status != model.ProjectStatusCompleted {
		t.Errorf("status = %q", view.Status)
	}
	if view.DaysRemaining != 0 {
		t.Errorf("completed project days_remaining = %d, want 0", view.DaysRemaining)
	}
}

func TestProjectUpdateOwnershipForPM(t *testing.T) {
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusInProgress,
		EndDate: date(2026, time.June, 1), CreatedBy: 9, ProjectManagerID: 9,
	}
	projects := newFakeProjects(p)
	s := newProjectService(projects, newFakeUsers(pm(2)), date(2026, time.May, 10))

	name := "Renamed"
	_, err := s.Update(context.Background(), pm(2), 1, model.ProjectUpdate{Name: &name})
	var denied *rbac.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("pm must not update a project they did not create, got %v", err)
	}
}

func TestProjectUpdateNotFound(t *testing.T) {
	s := newProjectService(newFakeProjects(), newFakeUsers(admin(1)), date(2026, time.May, 10))
	_, err := s.Update(context.Background(), admin(1), 42, model.ProjectUpdate{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestProjectDelete(t *testing.T) {
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusPlanned,
		EndDate: date(2026, time.June, 1), CreatedBy: 2, ProjectManagerID: 2,
	}
	projects := newFakeProjects(p)
	s := newProjectService(projects, newFakeUsers(pm(2), pm(3)), date(2026, time.May, 10))

	err := s.Delete(context.Background(), pm(3), 1)
	var denied *rbac.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("non-creator pm must not delete, got %v", err)
	}

	if err := s.Delete(context.Background(), pm(2), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(projects.deleted) != 1 || projects.deleted[0] != 1 {
		t.Errorf("cascade delete not invoked: %v", projects.deleted)
	}
}

func TestProjectMyListing(t *testing.T) {
	mine := &model.Project{ID: 1, EndDate: date(2026, time.June, 1), CreatedBy: 2, ProjectManagerID: 2}
	other := &model.Project{ID: 2, EndDate: date(2026, time.June, 1), CreatedBy: 9, ProjectManagerID: 9}
	projects := newFakeProjects(mine, other)
	s := newProjectService(projects, newFakeUsers(pm(2)), date(2026, time.March, 1))

	views, page, err := s.My(context.Background(), pm(2), repository.ProjectFilter{})
	if err != nil {
		t.Fatalf("My: %v", err)
	}
	if len(views) != 1 || views[0].ID != 1 {
		t.Errorf("expected only the actor's project, got %d views", len(views))
	}
	if page.Total != 1 {
		t.Errorf("total = %d, want 1", page.Total)
	}
}

func TestProjectViewDerivedFields(t *testing.T) {
	p := &model.Project{
		ID: 1, Status: model.ProjectStatusInProgress, Progress: 25,
		EndDate: date(2026, time.March, 5), CreatedBy: 1, ProjectManagerID: 1,
		Budget: 1234567.89,
	}
	projects := newFakeProjects(p)
	s := newProjectService(projects, newFakeUsers(admin(1)), date(2026, time.March, 10))

	view, err := s.Get(context.Background(), admin(1), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.IsOverdue {
		t.Error("project past end date should be overdue")
	}
	if view.DaysRemaining != -5 {
		t.Errorf("days_remaining = %d, want -5", view.DaysRemaining)
	}
	if view.FormattedBudget != "$1,234,567.89" {
		t.Errorf("formatted_budget = %q", view.FormattedBudget)
	}
}
