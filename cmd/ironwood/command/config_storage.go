package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironwood-sim/ironwood/internal/authority"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pixil98/go-errors"
)

type StorageDriver int

const (
	StorageDriverFile StorageDriver = iota
	StorageDriverPostgres
)

func (d *StorageDriver) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "file":
		*d = StorageDriverFile
	case "postgres":
		*d = StorageDriverPostgres
	default:
		return fmt.Errorf("unknown storage driver: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Driver StorageDriver `json:"driver"`
	Path   string        `json:"path"`
	Dsn    string        `json:"dsn"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Driver {
	case StorageDriverFile:
		if c.Path == "" {
			el.Add(fmt.Errorf("path is required for the file driver"))
		} else if _, err := os.Stat(c.Path); err != nil {
			el.Add(fmt.Errorf("invalid path %q: %w", c.Path, err))
		}
	case StorageDriverPostgres:
		if c.Dsn == "" {
			el.Add(fmt.Errorf("dsn is required for the postgres driver"))
		}
	}

	return el.Err()
}

// Stores bundles the authority's durable stores. Only the authority role
// builds one; every other role reads through the bus.
type Stores struct {
	Accounts storage.Storer[*world.Account]
	Actors   storage.Storer[*world.Actor]
	States   storage.Storer[*world.SimulationState]
	Tokens   storage.Storer[*authority.TokenRecord]

	pool *pgxpool.Pool
}

// Close releases the shared connection pool. The individual stores are closed
// by the caches that own them.
func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (c *StorageConfig) BuildStores(ctx context.Context) (*Stores, error) {
	switch c.Driver {
	case StorageDriverPostgres:
		return c.buildPgStores(ctx)
	default:
		return c.buildFileStores()
	}
}

func (c *StorageConfig) buildFileStores() (*Stores, error) {
	accounts, err := buildFileStore[*world.Account](c.Path, "accounts")
	if err != nil {
		return nil, err
	}
	actors, err := buildFileStore[*world.Actor](c.Path, "actors")
	if err != nil {
		return nil, err
	}
	states, err := buildFileStore[*world.SimulationState](c.Path, "states")
	if err != nil {
		return nil, err
	}
	tokens, err := buildFileStore[*authority.TokenRecord](c.Path, "tokens")
	if err != nil {
		return nil, err
	}

	return &Stores{
		Accounts: accounts,
		Actors:   actors,
		States:   states,
		Tokens:   tokens,
	}, nil
}

func buildFileStore[T storage.Record](root, name string) (*storage.FileStore[T], error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s directory: %w", name, err)
	}

	store, err := storage.NewFileStore[T](dir)
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", name, err)
	}
	return store, nil
}

func (c *StorageConfig) buildPgStores(ctx context.Context) (*Stores, error) {
	pool, err := pgxpool.New(ctx, c.Dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	accounts := storage.NewPgStore[*world.Account](pool, "accounts",
		storage.WithUniqueColumn[*world.Account]("username", func(a *world.Account) string {
			return a.Username
		}))

	return &Stores{
		Accounts: accounts,
		Actors:   storage.NewPgStore[*world.Actor](pool, "actors"),
		States:   storage.NewPgStore[*world.SimulationState](pool, "simulation_states"),
		Tokens:   storage.NewPgStore[*authority.TokenRecord](pool, "tokens"),
		pool:     pool,
	}, nil
}
