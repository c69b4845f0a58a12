package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/twsync/pkg/index"
	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar serves the subset of the Calendar v3 events API the client uses.
type fakeCalendar struct {
	mu     sync.Mutex
	events   map[string]*calendar.Event
	nextID   int
	requests int
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	i := len(parts) - 1
	for i >= 0 && parts[i] != "events" {
		i--
	}
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	var eventID string
	if i+1 < len(parts) {
		eventID = parts[i+1]
	}

	switch {
	case eventID == "" && r.Method == http.MethodGet:
		items := []*calendar.Event{}
		want := r.URL.Query().Get("privateExtendedProperty")
		for _, e := range f.events {
			kv := strings.SplitN(want, "=", 2)
			if len(kv) == 2 && e.ExtendedProperties != nil && e.ExtendedProperties.Private[kv[0]] == kv[1] {
				items = append(items, e)
			}
		}
		writeJSON(w, &calendar.Events{Items: items})
	case eventID == "" && r.Method == http.MethodPost:
		var e calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		e.Id = fmt.Sprintf("evt%d", f.nextID)
		f.events[e.Id] = &e
		writeJSON(w, &e)
	case r.Method == http.MethodGet:
		e, ok := f.events[eventID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, e)
	case r.Method == http.MethodPatch:
		e, ok := f.events[eventID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var p calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p.Summary != "" {
			e.Summary = p.Summary
		}
		if p.Description != "" {
			e.Description = p.Description
		}
		if p.ColorId != "" {
			e.ColorId = p.ColorId
		}
		if p.Start != nil {
			e.Start, e.End = p.Start, p.End
		}
		writeJSON(w, e)
	case r.Method == http.MethodDelete:
		delete(f.events, eventID)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeCalendar) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeCalendar) summary(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		return e.Summary
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*CalendarClient, *fakeCalendar, *index.EventIndex) {
	t.Helper()
	fake := &fakeCalendar{events: make(map[string]*calendar.Event)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	idx, err := index.Open(t.TempDir())
	require.NoError(t, err)
	c := NewCalendarClient(srv, "primary", idx)
	c.now = func() time.Time { return time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC) }
	return c, fake, idx
}

func TestSyncTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	c, fake, idx := newTestClient(t)
	task := dueTask(t)

	action, err := c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Created, action)
	require.Equal(t, 1, fake.count())
	eventID := idx.Get(task.UUID)
	require.NotEmpty(t, eventID)

	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Kept, action)

	task.Description = "Renamed"
	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Patched, action)
	assert.Equal(t, "Renamed", fake.summary(eventID))

	task.Status = taskwarrior.DELETED
	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Deleted, action)
	assert.Zero(t, fake.count())
	assert.Empty(t, idx.Get(task.UUID))

	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Skipped, action)
}

func TestSyncTaskFindsEventWithoutIndex(t *testing.T) {
	ctx := context.Background()
	c, fake, _ := newTestClient(t)
	task := dueTask(t)

	_, err := c.SyncTask(ctx, task)
	require.NoError(t, err)

	c.index = nil
	action, err := c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Kept, action)
	assert.Equal(t, 1, fake.count())
}

func TestSyncTaskSkipsUnchangedWithoutAPICalls(t *testing.T) {
	ctx := context.Background()
	c, fake, idx := newTestClient(t)
	task := dueTask(t)

	_, err := c.SyncTask(ctx, task)
	require.NoError(t, err)
	require.NotEmpty(t, idx.Lookup(task.UUID).Fingerprint)
	before := fake.requestCount()

	action, err := c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Kept, action)
	assert.Equal(t, before, fake.requestCount())

	// Passing the due date turns the summary overdue, which must be pushed.
	c.now = func() time.Time { return task.Due.Add(time.Hour) }
	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Patched, action)
	assert.Equal(t, "! "+task.Description, fake.summary(idx.Get(task.UUID)))

	undated := taskwarrior.NewTask("no-due", taskwarrior.PENDING, time.Now(), "someday")
	before = fake.requestCount()
	action, err = c.SyncTask(ctx, undated)
	require.NoError(t, err)
	assert.Equal(t, Skipped, action)
	assert.Equal(t, before, fake.requestCount())
}

func TestSyncTaskDropsStaleIndexEntry(t *testing.T) {
	ctx := context.Background()
	c, fake, idx := newTestClient(t)
	task := dueTask(t)
	task.Status = taskwarrior.DELETED
	idx.Set(task.UUID, index.Entry{EventID: "gone"})

	action, err := c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Skipped, action)
	assert.Empty(t, idx.Get(task.UUID))

	before := fake.requestCount()
	action, err = c.SyncTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, Skipped, action)
	assert.Equal(t, before, fake.requestCount())
}
