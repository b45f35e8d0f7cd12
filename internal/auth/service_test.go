package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

type stubRepo struct {
	users  map[string]*User
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*User)}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) Create(ctx context.Context, user User) (User, error) {
	if _, ok := s.users[user.Email]; ok {
		return User{}, ErrEmailTaken
	}
	s.nextID++
	user.ID = s.nextID
	user.IsActive = true
	s.users[user.Email] = &user
	return user, nil
}

func newTestService(t *testing.T) (*Service, *TokenStore, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := NewTokenStore(client, time.Hour)
	repo := newStubRepo()
	return NewService(repo, tokens), tokens, repo
}

func TestSignupThenLogin(t *testing.T) {
	svc, tokens, _ := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.Signup(ctx, "Ops@Example.com", "correct horse", "")
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", user.Email)
	require.Equal(t, RoleOperator, user.Role)
	require.NotEmpty(t, token)

	p, err := tokens.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, p.UserID)
	require.Equal(t, RoleOperator, p.Role)

	_, token2, err := svc.Login(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEqual(t, token, token2)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "ops@example.com", "correct horse", "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ops@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, "ops@example.com", "correct horse", "")
	require.NoError(t, err)
	_, _, err = svc.Signup(ctx, "ops@example.com", "another pass", "")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestInactiveUserRejected(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw12345678"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.users["gone@example.com"] = &User{ID: 9, Email: "gone@example.com", PasswordHash: string(hash), Role: RoleOperator, IsActive: false}

	_, _, err = svc.Login(ctx, "gone@example.com", "pw12345678")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, tokens, _ := newTestService(t)
	ctx := context.Background()

	_, token, err := svc.Signup(ctx, "ops@example.com", "correct horse", "")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, token))

	_, err = tokens.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenStoreWithoutClient(t *testing.T) {
	tokens := NewTokenStore(nil, time.Minute)
	ctx := context.Background()

	_, err := tokens.Issue(ctx, shared.Principal{UserID: 1, Email: "a@b.c", Role: RoleAdmin})
	require.ErrorIs(t, err, ErrTokenStoreUnavailable)

	_, err = tokens.Resolve(ctx, "some-token")
	require.ErrorIs(t, err, ErrTokenStoreUnavailable)

	require.ErrorIs(t, tokens.Revoke(ctx, "some-token"), ErrTokenStoreUnavailable)
}

func TestTokenExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := NewTokenStore(client, time.Minute)
	token, err := tokens.Issue(context.Background(), shared.Principal{UserID: 1, Email: "a@b.c", Role: RoleAdmin})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestMiddlewareChain(t *testing.T) {
	_, tokens, _ := newTestService(t)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, shared.Principal{UserID: 7, Email: "ops@example.com", Role: RoleOperator})
	require.NoError(t, err)

	var seen *shared.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireAuth(tokens)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, int64(7), seen.UserID)

	admin := RequireAuth(tokens)(RequireRole(RoleAdmin)(inner))
	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
