package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const indexFile = "events.json"

// Entry records the calendar event pushed for one task.
type Entry struct {
	EventID string `json:"event_id"`
	// Fingerprint identifies the event content last written; empty when unknown.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// EventIndex maps task uuids to the calendar event created for them.
type EventIndex struct {
	Path    string
	entries map[string]Entry
	mu      sync.RWMutex
	dirty   bool
}

// Open loads the index kept in dir, or returns an empty one.
func Open(dir string) (*EventIndex, error) {
	idx := &EventIndex{
		Path:    filepath.Join(dir, indexFile),
		entries: make(map[string]Entry),
	}
	if _, err := os.Stat(idx.Path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *EventIndex) Load() error {
	data, err := os.ReadFile(idx.Path)
	if err != nil {
		return err
	}
	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode event index %s: %w", idx.Path, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = entries
	idx.dirty = false
	return nil
}

// Save writes the index if it changed.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(idx.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write event index: %w", err)
	}
	idx.dirty = false
	return nil
}

// Get returns the event id for taskID, or "".
func (idx *EventIndex) Get(taskID string) string {
	return idx.Lookup(taskID).EventID
}

func (idx *EventIndex) Lookup(taskID string) Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entries[taskID]
}

// Set records the event for taskID.
func (idx *EventIndex) Set(taskID string, e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.entries[taskID] != e {
		idx.entries[taskID] = e
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.entries[taskID]; exists {
		delete(idx.entries, taskID)
		idx.dirty = true
	}
}

func (idx *EventIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}
