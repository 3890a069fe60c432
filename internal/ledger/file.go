package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	creditsFile = "credits.json"
	eventsFile  = "webhook_events.json"
)

// FileStore reads the affected document from disk on every call and
// rewrites it after every mutation, so separate processes sharing dir see
// each other's writes. One mutex serializes access within the process.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed and checks that credits.json and
// webhook_events.json, when present, parse. Missing files start empty.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("ledger data dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger dir: %w", err)
	}
	s := &FileStore{dir: dir}
	if _, err := s.credits(); err != nil {
		return nil, err
	}
	if _, err := s.events(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credits, err := s.credits()
	if err != nil {
		return 0, err
	}
	return credits[NormalizeEmail(email)], nil
}

func (s *FileStore) Add(_ context.Context, email string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credits, err := s.credits()
	if err != nil {
		return 0, err
	}
	key := NormalizeEmail(email)
	credits[key] += amount
	if err := s.save(creditsFile, credits); err != nil {
		return 0, err
	}
	return credits[key], nil
}

func (s *FileStore) Set(_ context.Context, email string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credits, err := s.credits()
	if err != nil {
		return err
	}
	credits[NormalizeEmail(email)] = amount
	return s.save(creditsFile, credits)
}

func (s *FileStore) Has(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.events()
	if err != nil {
		return false, err
	}
	return events[eventID], nil
}

func (s *FileStore) Mark(ctx context.Context, eventID string) error {
	_, err := s.Claim(ctx, eventID)
	return err
}

func (s *FileStore) Claim(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.events()
	if err != nil {
		return false, err
	}
	if events[eventID] {
		return false, nil
	}
	events[eventID] = true
	if err := s.save(eventsFile, events); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) credits() (map[string]int, error) {
	var m map[string]int
	if err := s.load(creditsFile, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]int)
	}
	return m, nil
}

func (s *FileStore) events() (map[string]bool, error) {
	var m map[string]bool
	if err := s.load(eventsFile, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]bool)
	}
	return m, nil
}

func (s *FileStore) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// save writes v to a temp file in the same directory and renames it over
// the target, so readers never see a partial document.
func (s *FileStore) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
