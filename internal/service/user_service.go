package service

import (
	"context"

	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/repository"
	"projectdash/pkg/rbac"
)

// UserDirectory is the persistence surface the user service needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
	List(ctx context.Context, role string, page, perPage int) ([]model.User, int, error)
	ListByRole(ctx context.Context, role string) ([]model.User, error)
	UpdateRole(ctx context.Context, userID int, role string) error
}

type UserService struct {
	users  UserDirectory
	logger *zap.Logger
}

func NewUserService(users UserDirectory, logger *zap.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// List returns a page of users, optionally filtered by role. Admin only.
func (s *UserService) List(ctx context.Context, actor *model.User, role string, page, perPage int) ([]model.User, repository.Page, error) {
	if !actor.IsAdmin() {
		return nil, repository.Page{}, &rbac.DeniedError{Role: actor.Role, Action: rbac.ActionView, Resource: "user"}
	}
	if role != "" && !model.ValidRole(role) {
		return nil, repository.Page{}, apperr.NewValidation("role", "must be one of admin, project_manager, developer")
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	users, total, err := s.users.List(ctx, role, page, perPage)
	if err != nil {
		return nil, repository.Page{}, err
	}
	return users, repository.NewPage(total, perPage, page), nil
}

// ListByRole returns every user with the given role. Admin only.
func (s *UserService) ListByRole(ctx context.Context, actor *model.User, role string) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, &rbac.DeniedError{Role: actor.Role, Action: rbac.ActionView, Resource: "user"}
	}
	if !model.ValidRole(role) {
		return nil, apperr.NewValidation("role", "must be one of admin, project_manager, developer")
	}
	return s.users.ListByRole(ctx, role)
}

// ProjectManagers returns every project manager, for assignment pickers.
// Open to any authenticated user.
func (s *UserService) ProjectManagers(ctx context.Context) ([]model.User, error) {
	return s.users.ListByRole(ctx, model.RoleProjectManager)
}

// UpdateRole changes another user's role. Admin only, and an admin cannot
// demote themselves.
func (s *UserService) UpdateRole(ctx context.Context, actor *model.User, userID int, role string) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, &rbac.DeniedError{Role: actor.Role, Action: rbac.ActionUpdate, Resource: "user"}
	}
	if !model.ValidRole(role) {
		return nil, apperr.NewValidation("role", "must be one of admin, project_manager, developer")
	}
	if userID == actor.ID {
		return nil, apperr.NewValidation("user_id", "cannot change own role")
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, userID)
}
