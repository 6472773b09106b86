package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DayCounter counts requests made on one calendar date (YYYY-MM-DD).
type DayCounter struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// MonthCounter counts requests made in one calendar month (YYYY-MM).
type MonthCounter struct {
	Count int    `json:"count"`
	Month string `json:"month"`
}

// State is the persisted request bookkeeping of a single provider.
type State struct {
	RequestsDay   DayCounter   `json:"requestsDay"`
	RequestsMonth MonthCounter `json:"requestsMonth"`
}

// Store persists provider request counters.
type Store interface {
	Load(provider string) (State, error)
	Save(provider string, state State) error
}

// FileStore keeps the counters of all providers in one JSON document keyed by provider
// name. Every read-modify-write of the file happens under a single store-wide lock.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store backed by the file at path. The file does not need to exist.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the location of the backing document.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the state of provider. A missing file or entry, or an entry that cannot be
// decoded, yields a zero State.
func (s *FileStore) Load(provider string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return State{}, err
	}
	return s.decodeEntry(provider, doc), nil
}

// Save replaces the entry of provider, leaving every other entry untouched.
func (s *FileStore) Save(provider string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode request counters for %s: %w", provider, err)
	}
	doc[provider] = raw

	return s.writeLocked(doc)
}

// All returns the decoded state of every provider present in the document.
func (s *FileStore) All() (map[string]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]State, len(doc))
	for name := range doc {
		out[name] = s.decodeEntry(name, doc)
	}
	return out, nil
}

func (s *FileStore) decodeEntry(provider string, doc map[string]json.RawMessage) State {
	raw, ok := doc[provider]
	if !ok {
		return State{}
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("ignoring malformed request counters",
			zap.String("provider", provider),
			zap.String("path", s.path),
			zap.Error(err),
		)
		return State{}
	}
	return st
}

func (s *FileStore) readLocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read request counters: %w", err)
	}

	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("request counter file is not a JSON object; starting from zero",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return make(map[string]json.RawMessage), nil
	}
	return doc, nil
}

func (s *FileStore) writeLocked(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode request counters: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create counter directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".requests-*.json")
	if err != nil {
		return fmt.Errorf("create temp counter file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write request counters: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp counter file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace request counters: %w", err)
	}
	return nil
}
