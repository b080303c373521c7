package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
)

// FileArtifactStore keeps one JSON bundle per item in dir. A Put writes a
// temporary file and renames it over the bundle, so readers see either the
// old artifact or the new one. Writers for the same item are serialized.
type FileArtifactStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FileArtifactStore{dir: dir, locks: make(map[string]*itemLock)}, nil
}

// Path returns the bundle location for an item.
func (s *FileArtifactStore) Path(itemID string) string {
	return filepath.Join(s.dir, "model_"+itemID+".json")
}

func (s *FileArtifactStore) Put(ctx context.Context, itemID string, a *models.ModelArtifact) error {
	if err := ValidateItemID(itemID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	unlock := s.lock(itemID)
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, ".model_"+itemID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(itemID)); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	committed = true
	return nil
}

func (s *FileArtifactStore) Get(ctx context.Context, itemID string) (*models.ModelArtifact, error) {
	if err := ValidateItemID(itemID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(itemID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound("No model found for item %s", itemID)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a models.ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errs.Internal(err, "corrupt artifact for item %s", itemID)
	}
	return &a, nil
}

// Items lists the item ids that have a published bundle.
func (s *FileArtifactStore) Items() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "model_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "model_"), ".json"))
	}
	return ids, nil
}

// lock takes the per-item writer lock; entries are dropped once unused.
func (s *FileArtifactStore) lock(itemID string) func() {
	s.mu.Lock()
	l, ok := s.locks[itemID]
	if !ok {
		l = &itemLock{}
		s.locks[itemID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, itemID)
		}
		s.mu.Unlock()
	}
}

var _ repository.ArtifactStore = (*FileArtifactStore)(nil)
