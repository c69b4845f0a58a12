package google

import (
	"context"
	"fmt"
	"time"

	"github.com/harrisonrobin/twsync/pkg/index"
	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
	"google.golang.org/api/calendar/v3"
)

// Action is what SyncTask did with the calendar.
type Action string

const (
	Created Action = "created"
	Patched Action = "patched"
	Kept    Action = "kept"
	Deleted Action = "deleted"
	Skipped Action = "skipped"
)

// CalendarClient pushes tasks to one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	now        func() time.Time
}

// NewCalendarClient creates a new Google Calendar client. idx may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, now: time.Now}
}

// SyncTask creates, patches or deletes the event belonging to task. With an
// index, tasks whose event content is unchanged since the last push and tasks
// that never had an event are settled without calling the API.
func (c *CalendarClient) SyncTask(ctx context.Context, task *taskwarrior.Task) (Action, error) {
	if !WantsEvent(task) {
		if c.index != nil && c.index.Get(task.UUID) == "" {
			return Skipped, nil
		}
		existing, err := c.findEvent(ctx, task.UUID)
		if err != nil {
			return "", fmt.Errorf("error searching for event: %w", err)
		}
		if existing == nil {
			if c.index != nil {
				c.index.Remove(task.UUID)
			}
			return Skipped, nil
		}
		if err := c.DeleteEvent(ctx, existing.Id); err != nil {
			return "", err
		}
		if c.index != nil {
			c.index.Remove(task.UUID)
		}
		return Deleted, nil
	}

	target, err := ConvertTaskToEvent(task, c.now())
	if err != nil {
		return "", err
	}
	fingerprint := Fingerprint(target)
	if c.index != nil {
		if e := c.index.Lookup(task.UUID); e.EventID != "" && e.Fingerprint == fingerprint {
			return Kept, nil
		}
	}

	existing, err := c.findEvent(ctx, task.UUID)
	if err != nil {
		return "", fmt.Errorf("error searching for event: %w", err)
	}
	if existing != nil {
		patch, err := EventNeedsUpdate(existing, target)
		if err != nil {
			return "", fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		if patch == nil {
			c.remember(task.UUID, existing.Id, fingerprint)
			return Kept, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return "", err
		}
		c.remember(task.UUID, updated.Id, fingerprint)
		return Patched, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, target).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event: %w", err)
	}
	c.remember(task.UUID, created.Id, fingerprint)
	return Created, nil
}

func (c *CalendarClient) remember(taskID, eventID, fingerprint string) {
	if c.index != nil {
		c.index.Set(taskID, index.Entry{EventID: eventID, Fingerprint: fingerprint})
	}
}

// findEvent tries the local index first and falls back to searching the calendar.
func (c *CalendarClient) findEvent(ctx context.Context, taskID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			event, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && event.Status != "cancelled" {
				return event, nil
			}
		}
	}
	return c.GetEventByTaskID(ctx, taskID)
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID searches for an event carrying the task uuid in its private extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
