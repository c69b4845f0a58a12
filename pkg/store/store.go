package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
)

const storeFile = "tasks.json"

// Store is the local copy of synced tasks, persisted as a JSON array in the
// TaskWarrior export format so UDAs survive a save/load cycle.
type Store struct {
	Path  string
	tasks map[string]*taskwarrior.Task
	mu    sync.RWMutex
	dirty bool
}

// Open loads the store kept in dir, or returns an empty one if none exists yet.
func Open(dir string) (*Store, error) {
	s := &Store{
		Path:  filepath.Join(dir, storeFile),
		tasks: make(map[string]*taskwarrior.Task),
	}
	if _, err := os.Stat(s.Path); err == nil {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Load() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	batch, err := taskwarrior.ParseBatch(f)
	if err != nil {
		return fmt.Errorf("failed to read store %s: %w", s.Path, err)
	}
	if len(batch.Errors) > 0 {
		return fmt.Errorf("store %s holds %d invalid tasks, first: %w", s.Path, len(batch.Errors), batch.Errors[0])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*taskwarrior.Task, len(batch.Tasks))
	for _, t := range batch.Tasks {
		s.tasks[t.UUID] = t
	}
	s.dirty = false
	return nil
}

// Save writes the store if it changed since the last Load or Save.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	var buf bytes.Buffer
	if err := taskwarrior.WriteBatch(&buf, s.sorted()); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename store: %w", err)
	}
	s.dirty = false
	return nil
}

// Get returns a copy of the task, or nil.
func (s *Store) Get(id string) *taskwarrior.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tasks[id]; ok {
		return t.Clone()
	}
	return nil
}

// Put stores a copy of t, replacing any task with the same uuid.
func (s *Store) Put(t *taskwarrior.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tasks[t.UUID]; ok && old.Equal(t) {
		return
	}
	s.tasks[t.UUID] = t.Clone()
	s.dirty = true
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		s.dirty = true
	}
}

// All returns copies of every task ordered by uuid.
func (s *Store) All() []*taskwarrior.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sorted()
	for i, t := range out {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Store) sorted() []*taskwarrior.Task {
	out := make([]*taskwarrior.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// NewLocalTask creates a pending task with a fresh uuid, entered and modified now.
func NewLocalTask(description string, now time.Time) *taskwarrior.Task {
	t := taskwarrior.NewTask(uuid.NewString(), taskwarrior.PENDING, now.Truncate(time.Second), description)
	mod := t.Entry
	t.Modified = &mod
	return t
}
