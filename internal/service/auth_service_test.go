package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/pkg/config"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type mockUserStore struct {
	user           *models.User
	lastLoginCalls int
}

func (m *mockUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserStore) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	m.lastLoginCalls++
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *mockUserStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &mockUserStore{user: &models.User{
		ID:           "user-1",
		SchoolID:     tSchool,
		Email:        "admin@example.com",
		FullName:     "Ada Obi",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}}
	svc := NewAuthService(store, config.JWTConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "schoolcore-test",
	}, nil, zap.NewNop())
	return svc, store
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	svc, store := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, 1, store.lastLoginCalls)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, tSchool, claims.SchoolID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthLoginSameErrorForUnknownAndWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, unknownErr := svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.Error(t, unknownErr)

	_, wrongErr := svc.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, wrongErr)

	assert.Equal(t, appErrors.FromError(unknownErr).Code, appErrors.FromError(wrongErr).Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(unknownErr).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, store := newAuthFixture(t)
	store.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Equal(t, appErrors.ErrUnauthorized, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService(&mockUserStore{}, config.JWTConfig{Secret: "other-secret", Expiration: time.Hour}, nil, zap.NewNop())
		_, err := other.ValidateToken(resp.AccessToken)
		assert.Equal(t, appErrors.ErrUnauthorized, err)
	})
}

func TestAuthMe(t *testing.T) {
	svc, _ := newAuthFixture(t)

	info, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", info.Email)
	assert.Equal(t, models.RoleAdmin, info.Role)

	_, err = svc.Me(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
