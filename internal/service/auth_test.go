package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportshop/api/internal/dto"
	"github.com/sportshop/api/internal/model"
)

func newAuthService(users *mockUserRepo) *AuthService {
	return NewAuthService(users, "test-secret", time.Hour, 24*time.Hour, nil, testLogger())
}

func TestAuthService_Register(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users)

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email:     "  New.User@Example.COM ",
		Password:  "password123",
		FirstName: "Ann",
		LastName:  "Lee",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "new.user@example.com", resp.User.Email)
	assert.Equal(t, string(model.RoleCustomer), resp.User.Role)

	// The stored password is hashed, never the plain text.
	stored, err := users.GetByEmail(context.Background(), "new.user@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "password123", stored.Password)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc := newAuthService(newMockUserRepo())
	req := dto.RegisterRequest{Email: "a@b.com", Password: "password123", FirstName: "A", LastName: "B"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_Login(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users)
	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "a@b.com", Password: "password123", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "A@B.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	// The token carries the subject and role claims.
	token, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, resp.User.ID.String(), claims["sub"])
	assert.Equal(t, "customer", claims["role"])
}

func TestAuthService_Login_BadCredentials(t *testing.T) {
	svc := newAuthService(newMockUserRepo())
	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "a@b.com", Password: "password123", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "a@b.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "nobody@b.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users)
	reg, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "a@b.com", Password: "password123", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	refresh, err := svc.RefreshToken(reg.User.ID)
	require.NoError(t, err)

	resp, err := svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, reg.User.ID, resp.User.ID)
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users)
	reg, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "a@b.com", Password: "password123", FirstName: "A", LastName: "B",
	})
	require.NoError(t, err)

	// Access tokens lack the refresh type claim and must not be accepted.
	_, err = svc.Refresh(context.Background(), reg.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_Refresh_DeletedUser(t *testing.T) {
	svc := newAuthService(newMockUserRepo())
	refresh, err := svc.RefreshToken(uuid.New())
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_Me_NotFound(t *testing.T) {
	svc := newAuthService(newMockUserRepo())
	_, err := svc.Me(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
