package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/swimbuddz/academy-api/internal/models"
	appErrors "github.com/swimbuddz/academy-api/pkg/errors"
)

type fakeAuthRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: make(map[string]*models.User), tokens: make(map[string]*models.RefreshToken)}
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if u, ok := f.users[id]; ok {
		now := time.Now().UTC()
		u.LastLogin = &now
	}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copied := *token
	f.tokens[token.Token] = &copied
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) RevokeUserTokens(ctx context.Context, userID string) error {
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func authFixture(t *testing.T) (*fakeAuthRepo, *AuthService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("swim-safe-1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newFakeAuthRepo()
	repo.users["u1"] = &models.User{
		ID:           "u1",
		Email:        "coach@swimbuddz.test",
		PasswordHash: string(hash),
		FullName:     "Test Coach",
		Role:         models.RoleCoach,
		Active:       true,
	}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "academy-api-test",
	})
	return repo, svc
}

func TestLoginIssuesValidTokenPair(t *testing.T) {
	repo, svc := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "coach@swimbuddz.test", Password: "swim-safe-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, models.RoleCoach, resp.User.Role)
	require.NotNil(t, repo.users["u1"].LastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, models.RoleCoach, claims.Role)
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	_, svc := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "coach@swimbuddz.test", Password: "wrong",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccountRejected(t *testing.T) {
	repo, svc := authFixture(t)
	repo.users["u1"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "coach@swimbuddz.test", Password: "swim-safe-1",
	})
	require.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestRefreshRotatesToken(t *testing.T) {
	repo, svc := authFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "coach@swimbuddz.test", Password: "swim-safe-1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked; a replay is rejected.
	require.True(t, repo.tokens[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestLogoutRequiresOwnership(t *testing.T) {
	repo, svc := authFixture(t)
	ctx := context.Background()

	login, err := svc.Login(ctx, models.LoginRequest{Email: "coach@swimbuddz.test", Password: "swim-safe-1"})
	require.NoError(t, err)

	err = svc.Logout(ctx, login.RefreshToken, "someone-else")
	require.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(ctx, login.RefreshToken, "u1"))
	require.True(t, repo.tokens[login.RefreshToken].Revoked)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	repo, svc := authFixture(t)
	other := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "academy-api-test",
	})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "coach@swimbuddz.test", Password: "swim-safe-1"})
	require.NoError(t, err)

	_, err = other.ValidateToken(login.AccessToken)
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
