package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/boardproject/boardadmin/pkg/utils"
)

// FileStore implements file-based credential persistence.
// Every write rewrites the whole document atomically with mode 0600.
type FileStore struct {
	filePath string
	values   map[string]string
	mu       sync.RWMutex
}

type fileDocument struct {
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewFileStore creates a file store, loading any existing document
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	fs := &FileStore{
		filePath: filePath,
		values:   make(map[string]string),
	}

	if err := fs.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return fs, nil
}

// Get retrieves a value by key
func (fs *FileStore) Get(_ context.Context, key string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	value, exists := fs.values[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value and syncs to file
func (fs *FileStore) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, existed := fs.values[key]
	fs.values[key] = value
	if err := fs.syncToFile(); err != nil {
		if existed {
			fs.values[key] = previous
		} else {
			delete(fs.values, key)
		}
		return err
	}
	return nil
}

// Delete removes values and syncs to file
func (fs *FileStore) Delete(_ context.Context, keys ...string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	changed := false
	for _, key := range keys {
		if _, exists := fs.values[key]; exists {
			delete(fs.values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return fs.syncToFile()
}

// Close is a no-op; every write is already on disk
func (fs *FileStore) Close() error {
	return nil
}

// Path returns the backing file path
func (fs *FileStore) Path() string {
	return fs.filePath
}

func (fs *FileStore) syncToFile() error {
	doc := fileDocument{
		Values:    fs.values,
		UpdatedAt: time.Now().UTC(),
	}
	if err := utils.WriteJSONFile(fs.filePath, doc, 0600); err != nil {
		return fmt.Errorf("failed to write credentials to %s: %w", fs.filePath, err)
	}
	return nil
}

func (fs *FileStore) loadFromFile() error {
	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode credentials: %w", err)
	}
	if doc.Values != nil {
		fs.values = doc.Values
	}
	return nil
}
