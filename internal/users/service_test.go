package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/formgate/formgate/internal/rbac"
	"github.com/formgate/formgate/internal/shared"
)

type mockRepo struct {
	users     []User
	passwords map[string]string
}

func newMockRepo(users ...User) *mockRepo {
	return &mockRepo{users: users, passwords: map[string]string{}}
}

func (m *mockRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	total := len(m.users)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return m.users[offset:end], total, nil
}

func (m *mockRepo) SetActive(ctx context.Context, email string, active bool) error {
	for i := range m.users {
		if m.users[i].Email == email {
			m.users[i].IsActive = active
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRepo) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	for i := range m.users {
		if m.users[i].Email == email {
			m.passwords[email] = passwordHash
			return nil
		}
	}
	return shared.ErrNotFound
}

type mockAuthority struct {
	deniedEmails map[string]bool
}

func (m *mockAuthority) ResolveActor(ctx context.Context, userID int64) (*rbac.User, error) {
	return &rbac.User{ID: userID}, nil
}

func (m *mockAuthority) CanManageUserByEmail(ctx context.Context, actor rbac.User, email string) error {
	if m.deniedEmails[email] {
		return &rbac.AuthorizationDeniedError{Reason: "cannot manage a user of equal or higher authority"}
	}
	return nil
}

func TestListUsersPagination(t *testing.T) {
	repo := newMockRepo(
		User{ID: 1, Email: "a@test.local"},
		User{ID: 2, Email: "b@test.local"},
		User{ID: 3, Email: "c@test.local"},
	)
	svc := NewService(repo, &mockAuthority{})

	list, pagination, err := svc.ListUsers(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c@test.local", list[0].Email)
	assert.Equal(t, 3, pagination.Total)
	assert.Equal(t, 2, pagination.TotalPages)
}

func TestSetActiveRequiresAuthority(t *testing.T) {
	repo := newMockRepo(User{ID: 1, Email: "peer@test.local", IsActive: true})
	svc := NewService(repo, &mockAuthority{deniedEmails: map[string]bool{"peer@test.local": true}})

	err := svc.SetActive(context.Background(), rbac.User{ID: 9}, "peer@test.local", false)
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)
	assert.True(t, repo.users[0].IsActive)
}

func TestSetActiveTogglesAccount(t *testing.T) {
	repo := newMockRepo(User{ID: 1, Email: "junior@test.local", IsActive: true})
	svc := NewService(repo, &mockAuthority{})

	require.NoError(t, svc.SetActive(context.Background(), rbac.User{ID: 9}, "junior@test.local", false))
	assert.False(t, repo.users[0].IsActive)
}

func TestSetActiveUnknownUser(t *testing.T) {
	svc := NewService(newMockRepo(), &mockAuthority{})

	err := svc.SetActive(context.Background(), rbac.User{ID: 9}, "ghost@test.local", false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetPasswordStoresBcryptHash(t *testing.T) {
	repo := newMockRepo(User{ID: 1, Email: "junior@test.local", IsActive: true})
	svc := NewService(repo, &mockAuthority{})

	require.NoError(t, svc.ResetPassword(context.Background(), rbac.User{ID: 9}, "junior@test.local", "brand-new-pass"))
	hash := repo.passwords["junior@test.local"]
	require.NotEmpty(t, hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-pass")))
}

func TestResetPasswordRequiresAuthority(t *testing.T) {
	repo := newMockRepo(User{ID: 1, Email: "peer@test.local"})
	svc := NewService(repo, &mockAuthority{deniedEmails: map[string]bool{"peer@test.local": true}})

	err := svc.ResetPassword(context.Background(), rbac.User{ID: 9}, "peer@test.local", "brand-new-pass")
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)
	assert.Empty(t, repo.passwords)
}
