package service

import (
	"context"
	"errors"
	"testing"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/internal/util"
)

const authTestSecret = "auth-test-secret"

func newAuthService(users *fakeUsers) (*AuthService, *fakeRevoker) {
	revoker := newFakeRevoker()
	return NewAuthService(users, revoker, authTestSecret, testLogger()), revoker
}

func TestRegisterDefaultsToDeveloper(t *testing.T) {
	s, _ := newAuthService(newFakeUsers())

	u, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != model.RoleDeveloper {
		t.Errorf("role = %q, want developer", u.Role)
	}
	if u.PasswordHash == "password123" || u.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
}

func TestRegisterRejectsBadRole(t *testing.T) {
	s, _ := newAuthService(newFakeUsers())

	_, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", "superuser")
	if _, ok := apperr.IsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s, _ := newAuthService(newFakeUsers())

	if _, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := s.Register(context.Background(), "Other", "ada@example.com", "password456", "")
	ve, ok := apperr.IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ve.Fields["email"]; !ok {
		t.Errorf("expected email violation, got %v", ve.Fields)
	}
}

func TestLoginAndResolve(t *testing.T) {
	users := newFakeUsers()
	s, _ := newAuthService(users)

	registered, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", model.RoleProjectManager)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := s.Login(context.Background(), "ada@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	u, err := s.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.ID != registered.ID {
		t.Errorf("resolved id = %d, want %d", u.ID, registered.ID)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	s, _ := newAuthService(newFakeUsers())
	if _, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", ""); err != nil {
		t.Fatal(err)
	}

	_, errUnknown := s.Login(context.Background(), "nobody@example.com", "password123")
	_, errWrongPass := s.Login(context.Background(), "ada@example.com", "wrong")

	if !errors.Is(errUnknown, apperr.ErrUnauthenticated) {
		t.Errorf("unknown email: %v", errUnknown)
	}
	if !errors.Is(errWrongPass, apperr.ErrUnauthenticated) {
		t.Errorf("wrong password: %v", errWrongPass)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s, revoker := newAuthService(newFakeUsers())
	if _, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", ""); err != nil {
		t.Fatal(err)
	}
	token, err := s.Login(context.Background(), "ada@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if revoked, _ := revoker.IsRevoked(context.Background(), token); !revoked {
		t.Error("token should be on the denylist")
	}

	if _, err := s.Resolve(context.Background(), token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("revoked token must not resolve, got %v", err)
	}
}

func TestResolveRejectsInvalidToken(t *testing.T) {
	s, _ := newAuthService(newFakeUsers())

	if _, err := s.Resolve(context.Background(), "garbage"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("garbage token: %v", err)
	}

	// Token for a user that no longer exists.
	token, err := util.GenerateJWT(999, authTestSecret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resolve(context.Background(), token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("deleted user token: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	users := newFakeUsers()
	s, _ := newAuthService(users)

	u, err := s.Register(context.Background(), "Ada", "ada@example.com", "password123", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ChangePassword(context.Background(), u, "wrong", "newpassword1"); err == nil {
		t.Error("wrong current password must be rejected")
	}

	if err := s.ChangePassword(context.Background(), u, "password123", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := s.Login(context.Background(), "ada@example.com", "newpassword1"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}
