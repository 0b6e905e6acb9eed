package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/formgate/formgate/internal/rbac"
	"github.com/formgate/formgate/internal/shared"
)

// Authority is the slice of the role engine the user admin surface needs:
// resolving actors and checking the management ordering.
type Authority interface {
	ResolveActor(ctx context.Context, userID int64) (*rbac.User, error)
	CanManageUserByEmail(ctx context.Context, actor rbac.User, email string) error
}

// Service handles user administration logic.
type Service struct {
	repo      RepositoryPort
	authority Authority
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, authority Authority) *Service {
	return &Service{repo: repo, authority: authority}
}

// ListUsers returns one page of users plus pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.ListUsers(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if users == nil {
		users = []User{}
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// SetActive toggles an account. The actor must outrank the target.
func (s *Service) SetActive(ctx context.Context, actor rbac.User, email string, active bool) error {
	if err := s.authority.CanManageUserByEmail(ctx, actor, email); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, email, active)
}

// ResetPassword replaces the target's password. The actor must outrank
// the target.
func (s *Service) ResetPassword(ctx context.Context, actor rbac.User, email, newPassword string) error {
	if err := s.authority.CanManageUserByEmail(ctx, actor, email); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, email, string(hash))
}
