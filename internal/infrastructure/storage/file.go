package storage

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

	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

// FileStore keeps one JSON document per key under dir, named
// "{strategy}:{symbol}.json". Writes go to a temp file that is synced and
// renamed over the target.
type FileStore struct {
	dir    string
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

// NewFileStore stores the namespace under baseDir/namespace.
func NewFileStore(baseDir, namespace string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		dir:    filepath.Join(baseDir, namespace),
		logger: logger.With(zap.String("namespace", namespace)),
	}
}

// WaitForInit creates the directory and removes leftovers of interrupted
// writes. Documents that no longer decode are kept so that ReadValue
// reports them instead of the key looking empty.
func (s *FileStore) WaitForInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.init()
	})
	return s.initErr
}

func (s *FileStore) init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		switch {
		case strings.HasSuffix(e.Name(), ".tmp"):
			s.logger.Warn("Removing interrupted write", zap.String("file", path))
			_ = os.Remove(path)
		case strings.HasSuffix(e.Name(), ".json"):
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if _, err := decodeSignal(data); err != nil {
				s.logger.Error("Unreadable state left in place", zap.String("file", path), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *FileStore) path(key domain.StoreKey) (string, error) {
	name := key.String()
	if key.StrategyName == "" || key.Symbol == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid key %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func (s *FileStore) HasValue(ctx context.Context, key domain.StoreKey) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) ReadValue(ctx context.Context, key domain.StoreKey) (*domain.Signal, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	sig, err := decodeSignal(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", path, err)
	}
	return sig, nil
}

func (s *FileStore) WriteValue(ctx context.Context, key domain.StoreKey, value *domain.Signal) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove state file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

func decodeSignal(data []byte) (*domain.Signal, error) {
	var sig domain.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	if sig.ID == "" {
		return nil, errors.New("failed to parse state: missing id")
	}
	return &sig, nil
}
