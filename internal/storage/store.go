package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pixil98/go-errors"
)

// Record is an entity that can be durably stored.
type Record interface {
	Key() string
	Validate() error
}

// Storer is the narrow durable-store accessor a cache sits on top of. Remote
// implementations forward reads over the synchronous channel and treat writes
// as local no-ops; durable writes only ever happen inside the authority role.
type Storer[T Record] interface {
	LoadAll(ctx context.Context) (map[string]T, error)
	Get(ctx context.Context, id string) (T, error)
	Upsert(ctx context.Context, record T) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// FileStore persists one JSON asset file per record under a directory.
type FileStore[T Record] struct {
	path string
}

func NewFileStore[T Record](path string) (*FileStore[T], error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid store path %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store path %q is not a directory", path)
	}

	return &FileStore[T]{path: path}, nil
}

func (s *FileStore[T]) LoadAll(_ context.Context) (map[string]T, error) {
	records := map[string]T{}

	err := filepath.Walk(s.path, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// Load all json files in the store path
		if !info.IsDir() && filepath.Ext(path) == ".json" {
			asset, err := s.loadAsset(path)
			if err != nil {
				return err
			}

			err = asset.Validate()
			if err != nil {
				return fmt.Errorf("validating %s: %w", filepath.Base(path), err)
			}

			// Error if the key is already in use
			_, ok := records[asset.Id().String()]
			if ok {
				return fmt.Errorf("duplicate key detected: %s", asset.Id())
			}

			records[asset.Id().String()] = asset.Spec
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (s *FileStore[T]) Get(_ context.Context, id string) (T, error) {
	var zero T

	path := s.filePath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, fmt.Errorf("checking %q: %w", path, err)
	}

	asset, err := s.loadAsset(path)
	if err != nil {
		return zero, err
	}

	return asset.Spec, nil
}

func (s *FileStore[T]) Upsert(_ context.Context, record T) error {
	asset := &Asset[T]{
		Version:    1,
		Identifier: Identifier(record.Key()),
		Spec:       record,
	}

	jsonData, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	return atomicWrite(s.filePath(record.Key()), jsonData, 0644)
}

func (s *FileStore[T]) Delete(_ context.Context, id string) error {
	err := os.Remove(s.filePath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", id, err)
	}
	return nil
}

func (s *FileStore[T]) Close() error {
	return nil
}

// atomicWrite writes data to a temp file then renames it to the target path.
// This prevents partial or empty files if the process is interrupted.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		el := errors.NewErrorList()
		el.Add(fmt.Errorf("renaming temp file: %w", err))
		if removeErr := os.Remove(tmp); removeErr != nil {
			el.Add(fmt.Errorf("removing temp file: %w", removeErr))
		}
		return el.Err()
	}
	return nil
}

func (s *FileStore[T]) filePath(id string) string {
	return filepath.Join(s.path, fmt.Sprintf("%s.json", id))
}

func (s *FileStore[T]) loadAsset(path string) (*Asset[T], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	// Ignoring close error - file is read-only, error is not actionable
	defer func() { _ = file.Close() }()

	jsonData, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var spec T
	asset := &Asset[T]{
		Spec: spec,
	}
	err = json.Unmarshal(jsonData, asset)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling asset: %w", err)
	}

	return asset, nil
}
