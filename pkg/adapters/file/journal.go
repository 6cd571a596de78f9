package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/ports"
)

// Journal implements ports.Journal on the local filesystem.
// Each session is one JSON file holding its records in append order.
type Journal struct {
	BasePath string

	mu sync.Mutex
}

// New creates a Journal rooted at basePath.
// If basePath is empty, it defaults to ".tapestry/journal".
func New(basePath string) *Journal {
	if basePath == "" {
		basePath = filepath.Join(".tapestry", "journal")
	}
	return &Journal{BasePath: basePath}
}

func (j *Journal) path(sessionID string) string {
	return filepath.Join(j.BasePath, sessionID+".json")
}

// Append adds rec to the session file, rewriting it atomically.
func (j *Journal) Append(ctx context.Context, sessionID string, rec ports.Record) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	recs, err := j.read(sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return j.write(sessionID, append(recs, rec))
}

// List returns the session's records.
func (j *Journal) List(ctx context.Context, sessionID string) ([]ports.Record, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(sessionID)
}

// Delete removes the session file.
func (j *Journal) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.Remove(j.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal file: %w", err)
	}
	return nil
}

// Sessions returns every session with a journal file, sorted.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(j.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (j *Journal) read(sessionID string) ([]ports.Record, error) {
	data, err := os.ReadFile(j.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}
	var recs []ports.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	return recs, nil
}

// write replaces the session file through a synced temp file and a rename.
func (j *Journal) write(sessionID string, recs []ports.Record) error {
	if err := os.MkdirAll(j.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure journal directory: %w", err)
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(j.BasePath, "tmp-"+sessionID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := j.path(sessionID)
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing journal for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
