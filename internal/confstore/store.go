package confstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store persists one JSON document per logical namespace under a data
// directory. Reads and writes are whole-file; a missing or corrupt file reads
// as empty. I/O failures are logged and swallowed so a persistence hiccup
// never propagates into the callers' control flow.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
	locks  map[string]*sync.Mutex
}

func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Load decodes the namespace file into out. When the file is missing,
// unreadable, or not valid JSON, out is left untouched.
func (s *Store) Load(namespace string, out any) {
	lock := s.lock(namespace)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.path(namespace))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("namespace read failed", zap.String("namespace", namespace), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("namespace decode failed", zap.String("namespace", namespace), zap.Error(err))
	}
}

// Save serializes v and rewrites the namespace file.
func (s *Store) Save(namespace string, v any) {
	lock := s.lock(namespace)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("namespace encode failed", zap.String("namespace", namespace), zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path(namespace), data, 0o644); err != nil {
		s.logger.Warn("namespace write failed", zap.String("namespace", namespace), zap.Error(err))
	}
}

func (s *Store) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

func (s *Store) lock(namespace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.locks[namespace]
	if lock == nil {
		lock = &sync.Mutex{}
		s.locks[namespace] = lock
	}
	return lock
}
