package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// Tagged outcomes surfaced to the authentication gateway; these never cross
// the core boundary as panics.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrUsernameConflict  = errors.New("username conflict")
)

// Default view window target for new accounts.
const (
	defaultViewX = 256
	defaultViewY = 256
)

// creator is the slice of the synchronous channel the manager needs.
type creator interface {
	CreateAccount(ctx context.Context, account *world.Account) (*world.Account, error)
}

// Manager creates and authenticates accounts on a transport worker. All
// durable writes flow through the authority role; reads come from the local
// account cache.
type Manager struct {
	client   creator
	accounts *storage.Cache[*world.Account]
}

func NewManager(client creator, accounts *storage.Cache[*world.Account]) *Manager {
	return &Manager{
		client:   client,
		accounts: accounts,
	}
}

// Create registers a new account with a hashed credential. The username is
// canonicalized and must not collide with an existing account.
func (m *Manager) Create(ctx context.Context, username, password string) (*world.Account, error) {
	username = CanonicalUsername(username)
	if username == "" || password == "" {
		return nil, ErrInvalidParameters
	}

	if m.ForUsername(username) != nil {
		return nil, ErrUsernameConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	account, err := m.client.CreateAccount(ctx, &world.Account{
		Id:           uuid.New().String(),
		Username:     username,
		Name:         username,
		PasswordHash: string(hash),
		ViewX:        defaultViewX,
		ViewY:        defaultViewY,
	})
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	m.accounts.Put(account)
	return account, nil
}

func (m *Manager) ForId(accountId string) *world.Account {
	return m.accounts.ForId(accountId)
}

func (m *Manager) ForUsername(username string) *world.Account {
	return m.accounts.ForIndex(CanonicalUsername(username))
}

// ForUsernamePassword returns the matching account, or nil when either the
// username is unknown or the password does not match.
func (m *Manager) ForUsernamePassword(username, password string) (*world.Account, error) {
	account := m.ForUsername(username)
	if account == nil {
		return nil, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("comparing password: %w", err)
	}

	return account, nil
}

// CanonicalUsername folds a username to its stored form.
func CanonicalUsername(username string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(username)))
}
