package users

import (
	"context"
	"errors"
	"strings"

	"github.com/lsec-edu/microlearn/pkg/auth"
	"github.com/lsec-edu/microlearn/pkg/roles"
)

// Service implements the signup and signin flows
type Service struct {
	store  *Store
	roles  *roles.Store
	issuer *auth.TokenIssuer
}

// NewService creates a new user service
func NewService(store *Store, roleStore *roles.Store, issuer *auth.TokenIssuer) *Service {
	return &Service{store: store, roles: roleStore, issuer: issuer}
}

// SignupRequest carries the fields accepted at registration
type SignupRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// Signup validates the request, hashes the password and persists the
// account. An empty role list defaults to the student role. Role names
// are validated before any write so an unknown role never leaves a
// partial account behind.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*auth.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, ErrValidation
	}

	roleNames := req.Roles
	if len(roleNames) == 0 {
		roleNames = []string{roles.Student}
	}
	if err := roles.ValidateNames(roleNames); err != nil {
		return nil, err
	}

	if _, err := s.store.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	roleIDs, err := s.roles.IDsForNames(ctx, roleNames)
	if err != nil {
		return nil, err
	}

	u := &auth.User{Name: req.Name, Email: req.Email}
	if err := u.SetPassword(req.Password); err != nil {
		return nil, ErrValidation
	}

	if err := s.store.Create(ctx, u, roleIDs); err != nil {
		return nil, err
	}
	u.Roles = roleNames
	return u, nil
}

// Signin verifies the credentials and mints a token for the account.
// An unknown email and a wrong password are distinct failures so the
// client can phrase them differently.
func (s *Service) Signin(ctx context.Context, email, password string) (*auth.User, string, error) {
	u, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, "", err
	}

	if !u.Authenticate(password) {
		return nil, "", ErrBadCredentials
	}

	token, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// ChangePassword verifies the current password and installs a new one,
// regenerating the salt alongside the digest
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Authenticate(current) {
		return ErrBadCredentials
	}
	if err := u.SetPassword(next); err != nil {
		return ErrValidation
	}
	return s.store.Update(ctx, u)
}
