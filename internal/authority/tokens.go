package authority

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ironwood-sim/ironwood/internal/storage"
)

// ErrTokenInvalid reports an unknown or already-consumed token.
var ErrTokenInvalid = errors.New("token invalid")

// TokenRecord binds a single-use refresh token to an account.
type TokenRecord struct {
	Token     string    `json:"token"`
	AccountId string    `json:"accountId"`
	IssuedAt  time.Time `json:"issuedAt"`
}

func (t *TokenRecord) Key() string {
	return t.Token
}

func (t *TokenRecord) Validate() error {
	if t.Token == "" {
		return fmt.Errorf("token must be set")
	}
	if t.AccountId == "" {
		return fmt.Errorf("token account id must be set")
	}
	return nil
}

// TokenStore mints and redeems single-use refresh tokens.
type TokenStore struct {
	store storage.Storer[*TokenRecord]
}

func NewTokenStore(store storage.Storer[*TokenRecord]) *TokenStore {
	return &TokenStore{store: store}
}

func (s *TokenStore) Issue(ctx context.Context, accountId string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}

	record := &TokenRecord{
		Token:     token,
		AccountId: accountId,
		IssuedAt:  time.Now(),
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Consume redeems a token for its account id, invalidating it. A second
// redemption of the same token fails.
func (s *TokenStore) Consume(ctx context.Context, token string) (string, error) {
	record, err := s.store.Get(ctx, token)
	if err != nil {
		return "", fmt.Errorf("looking up token: %w", err)
	}
	if record == nil {
		return "", ErrTokenInvalid
	}

	if err := s.store.Delete(ctx, token); err != nil {
		return "", fmt.Errorf("consuming token: %w", err)
	}

	return record.AccountId, nil
}

func (s *TokenStore) Close() error {
	return s.store.Close()
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
