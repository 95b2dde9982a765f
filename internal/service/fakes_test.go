package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/repository"
)

// fakeUsers is an in-memory UserStore / UserFinder / UserDirectory.
type fakeUsers struct {
	nextID int
	byID   map[int]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{nextID: 1, byID: map[int]*model.User{}}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = f.nextID
		}
		if u.ID >= f.nextID {
			f.nextID = u.ID + 1
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	u.ID = f.nextID
	f.nextID++
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id int) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID int, hash string) error {
	u, ok := f.byID[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) List(_ context.Context, role string, _, _ int) ([]model.User, int, error) {
	out := []model.User{}
	for _, u := range f.byID {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (f *fakeUsers) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	out, _, err := f.List(ctx, role, 1, 100)
	return out, err
}

func (f *fakeUsers) UpdateRole(_ context.Context, userID int, role string) error {
	u, ok := f.byID[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.Role = role
	return nil
}

// fakeRevoker is an in-memory TokenRevoker.
type fakeRevoker struct {
	revoked map[string]time.Time
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: map[string]time.Time{}}
}

func (f *fakeRevoker) Revoke(_ context.Context, token string, until time.Time) error {
	f.revoked[token] = until
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	_, ok := f.revoked[token]
	return ok, nil
}

type progressCall struct {
	id       int
	progress int
}

// fakeProjects is an in-memory ProjectStore / ProjectMembership that records
// the write calls the tests assert on.
type fakeProjects struct {
	nextID int
	byID   map[int]*model.Project
	stats  map[int]model.TaskStats
	// members maps projectID to the user ids considered team members.
	members map[int]map[int]bool

	setProgressCalls []progressCall
	lastUpdate       *model.ProjectUpdate
	lastCompleted    bool
	deleted          []int
}

func newFakeProjects(projects ...*model.Project) *fakeProjects {
	f := &fakeProjects{
		nextID:  1,
		byID:    map[int]*model.Project{},
		stats:   map[int]model.TaskStats{},
		members: map[int]map[int]bool{},
	}
	for _, p := range projects {
		if p.ID == 0 {
			p.ID = f.nextID
		}
		if p.ID >= f.nextID {
			f.nextID = p.ID + 1
		}
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProjects) addMember(projectID, userID int) {
	if f.members[projectID] == nil {
		f.members[projectID] = map[int]bool{}
	}
	f.members[projectID][userID] = true
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	p.ID = f.nextID
	f.nextID++
	f.byID[p.ID] = p
	f.addMember(p.ID, p.ProjectManagerID)
	return nil
}

func (f *fakeProjects) GetByID(_ context.Context, id int) (*model.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) List(_ context.Context, _ repository.ProjectFilter) ([]model.Project, int, error) {
	out := []model.Project{}
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (f *fakeProjects) ListForUser(_ context.Context, userID int, _ repository.ProjectFilter) ([]model.Project, int, error) {
	out := []model.Project{}
	for _, p := range f.byID {
		if p.CreatedBy == userID || p.ProjectManagerID == userID || f.members[p.ID][userID] {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (f *fakeProjects) Update(_ context.Context, id int, upd model.ProjectUpdate, completed bool) (*model.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	f.lastUpdate = &upd
	f.lastCompleted = completed

	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Progress != nil {
		p.Progress = *upd.Progress
	}
	if upd.ActualEndDate != nil {
		p.ActualEndDate = upd.ActualEndDate
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) SetProgress(_ context.Context, id, progress int) error {
	f.setProgressCalls = append(f.setProgressCalls, progressCall{id, progress})
	if p, ok := f.byID[id]; ok {
		p.Progress = progress
	}
	return nil
}

func (f *fakeProjects) SoftDeleteCascade(_ context.Context, id int) error {
	if _, ok := f.byID[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeProjects) IsMember(_ context.Context, projectID, userID int) (bool, error) {
	return f.members[projectID][userID], nil
}

func (f *fakeProjects) TaskStats(_ context.Context, projectID int) (model.TaskStats, error) {
	return f.stats[projectID], nil
}

// fakeTasks is an in-memory TaskStore.
type fakeTasks struct {
	nextID int
	byID   map[int]*model.Task

	lastBulkIDs []int
	deleted     []int
}

func newFakeTasks(tasks ...*model.Task) *fakeTasks {
	f := &fakeTasks{nextID: 1, byID: map[int]*model.Task{}}
	for _, t := range tasks {
		if t.ID == 0 {
			t.ID = f.nextID
		}
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
		f.byID[t.ID] = t
	}
	return f
}

func (f *fakeTasks) Create(_ context.Context, t *model.Task) error {
	t.ID = f.nextID
	f.nextID++
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTasks) GetByID(_ context.Context, id int) (*model.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ListByProject(_ context.Context, projectID int, _ repository.TaskFilter) ([]model.Task, error) {
	out := []model.Task{}
	for _, t := range f.byID {
		if t.ProjectID == projectID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) Update(_ context.Context, id int, upd model.TaskUpdate) (*model.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.AssignedTo != nil {
		t.AssignedTo = *upd.AssignedTo
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Participants != nil {
		t.Participants = *upd.Participants
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) BulkUpdate(_ context.Context, ids []int, status, priority *string, assignedTo *int) error {
	f.lastBulkIDs = ids
	for _, id := range ids {
		t, ok := f.byID[id]
		if !ok {
			continue
		}
		if status != nil {
			t.Status = *status
		}
		if priority != nil {
			t.Priority = *priority
		}
		if assignedTo != nil {
			t.AssignedTo = *assignedTo
		}
	}
	return nil
}

func (f *fakeTasks) Delete(_ context.Context, id int) error {
	if _, ok := f.byID[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func admin(id int) *model.User {
	return &model.User{ID: id, Name: "admin", Email: "admin@example.com", Role: model.RoleAdmin}
}

func pm(id int) *model.User {
	return &model.User{ID: id, Name: "pm", Email: "pm@example.com", Role: model.RoleProjectManager}
}

func dev(id int) *model.User {
	return &model.User{ID: id, Name: "dev", Email: "dev@example.com", Role: model.RoleDeveloper}
}
