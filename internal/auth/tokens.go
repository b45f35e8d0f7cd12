package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// ErrTokenStoreUnavailable is returned when the store has no redis client.
var ErrTokenStoreUnavailable = errors.New("auth: token store unavailable")

// TokenStore keeps opaque bearer tokens in redis with a TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs the store.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a token bound to the principal.
func (ts *TokenStore) Issue(ctx context.Context, p shared.Principal) (string, error) {
	if ts.client == nil {
		return "", ErrTokenStoreUnavailable
	}
	token := generateToken()
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := ts.client.Set(ctx, tokenKey(token), payload, ts.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the principal behind a token, ErrInvalidCredentials when
// the token is unknown or expired.
func (ts *TokenStore) Resolve(ctx context.Context, token string) (*shared.Principal, error) {
	if token == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if ts.client == nil {
		return nil, ErrTokenStoreUnavailable
	}
	raw, err := ts.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	var p shared.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return &p, nil
}

// Revoke deletes a token.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if ts.client == nil {
		return ErrTokenStoreUnavailable
	}
	return ts.client.Del(ctx, tokenKey(token)).Err()
}

func tokenKey(token string) string {
	return "token:" + token
}

func generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
