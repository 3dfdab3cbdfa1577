package account

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
	"github.com/pixil98/go-testutil"
)

type mockCreator struct {
	created []*world.Account
	err     error
}

func (c *mockCreator) CreateAccount(ctx context.Context, account *world.Account) (*world.Account, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, account)
	return account, nil
}

type mockAccountStore struct{}

func (s *mockAccountStore) LoadAll(ctx context.Context) (map[string]*world.Account, error) {
	return map[string]*world.Account{}, nil
}

func (s *mockAccountStore) Get(ctx context.Context, id string) (*world.Account, error) {
	return nil, nil
}

func (s *mockAccountStore) Upsert(ctx context.Context, account *world.Account) error {
	return nil
}

func (s *mockAccountStore) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *mockAccountStore) Close() error {
	return nil
}

func newManager(client creator) *Manager {
	accounts := storage.NewCache[*world.Account](&mockAccountStore{},
		storage.WithIndex(func(a *world.Account) string {
			return CanonicalUsername(a.Username)
		}))
	return NewManager(client, accounts)
}

func TestManagerCreate(t *testing.T) {
	client := &mockCreator{}
	manager := newManager(client)

	account, err := manager.Create(context.Background(), "Ada", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "username", account.Username, "ada")
	testutil.AssertEqual(t, "view x", account.ViewX, 256)
	testutil.AssertEqual(t, "view y", account.ViewY, 256)
	testutil.AssertEqual(t, "created", len(client.created), 1)
	if account.Id == "" {
		t.Error("expected a generated id")
	}
	if account.PasswordHash == "hunter2" {
		t.Error("expected the password to be hashed")
	}

	testutil.AssertEqual(t, "cached", manager.ForId(account.Id).Username, "ada")
}

func TestManagerCreate_InvalidParameters(t *testing.T) {
	manager := newManager(&mockCreator{})

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "hunter2"},
		{"whitespace username", "   ", "hunter2"},
		{"empty password", "ada", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Create(context.Background(), tt.username, tt.password)
			testutil.AssertEqual(t, "error", err, ErrInvalidParameters, cmpopts.EquateErrors())
		})
	}
}

func TestManagerCreate_UsernameConflict(t *testing.T) {
	manager := newManager(&mockCreator{})

	_, err := manager.Create(context.Background(), "ada", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Conflicts are detected on the canonical form.
	_, err = manager.Create(context.Background(), "  ADA  ", "other")
	testutil.AssertEqual(t, "error", err, ErrUsernameConflict, cmpopts.EquateErrors())
}

func TestManagerCreate_AuthorityError(t *testing.T) {
	manager := newManager(&mockCreator{err: fmt.Errorf("bus gone")})

	_, err := manager.Create(context.Background(), "ada", "hunter2")
	testutil.AssertErrorContains(t, err, "creating account")
}

func TestManagerForUsernamePassword(t *testing.T) {
	manager := newManager(&mockCreator{})

	created, err := manager.Create(context.Background(), "ada", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	account, err := manager.ForUsernamePassword("ada", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account == nil {
		t.Fatal("expected a match")
	}
	testutil.AssertEqual(t, "id", account.Id, created.Id)

	// A wrong password and an unknown username both come back nil, not error.
	account, err = manager.ForUsernamePassword("ada", "wrong")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account != nil {
		t.Error("expected no match for wrong password")
	}

	account, err = manager.ForUsernamePassword("nobody", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account != nil {
		t.Error("expected no match for unknown username")
	}
}

func TestCanonicalUsername(t *testing.T) {
	tests := []struct {
		in  string
		exp string
	}{
		{"Ada", "ada"},
		{"  spaced  ", "spaced"},
		{"ＡＤＡ", "ada"},
	}

	for _, tt := range tests {
		testutil.AssertEqual(t, tt.in, CanonicalUsername(tt.in), tt.exp)
	}
}
