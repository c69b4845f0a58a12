package google

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
	"github.com/harrisonrobin/twsync/pkg/util"
	"google.golang.org/api/calendar/v3"
)

// TaskIDProperty is the private extended property holding the task uuid.
const TaskIDProperty = "taskwarrior_id"

const defaultDuration = 30 * time.Minute

// priorityColors maps TaskWarrior priorities to calendar color ids.
var priorityColors = map[string]string{
	"H": "11", // tomato
	"M": "5",  // banana
	"L": "2",  // sage
}

const defaultColor = "8" // graphite

// WantsEvent reports whether the task should be shown on the calendar.
func WantsEvent(task *taskwarrior.Task) bool {
	if task.Due == nil {
		return false
	}
	switch task.Status {
	case taskwarrior.PENDING, taskwarrior.COMPLETED:
		return !task.HasTag("BLOCKED")
	}
	return false
}

// EstimateUDA names the duration UDA used to size events.
const EstimateUDA = "estimate"

// ConvertTaskToEvent builds the calendar event for a task with a due date.
// The event ends at the due time and starts at the reminder, or estimate
// before the due time, or 30 minutes before it.
func ConvertTaskToEvent(task *taskwarrior.Task, now time.Time) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil task")
	}
	if task.Due == nil {
		return nil, fmt.Errorf("task %s has no due date", task.UUID)
	}

	end := *task.Due
	duration := defaultDuration
	if est, ok := task.UDA(EstimateUDA); ok {
		if d, err := util.ParseDuration(est); err == nil && d > 0 {
			duration = d
		}
	}
	start := end.Add(-duration)
	if task.Reminder != nil && task.Reminder.Before(end) {
		start = *task.Reminder
	}

	summary := task.Description
	switch {
	case task.Status == taskwarrior.COMPLETED:
		summary = "✓ " + summary
	case end.Before(now):
		summary = "! " + summary
	}

	colorID, ok := priorityColors[task.Priority]
	if !ok {
		colorID = defaultColor
	}

	return &calendar.Event{
		Summary:     summary,
		ColorId:     colorID,
		Description: describe(task),
		Start:       &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.UUID},
		},
	}, nil
}

func describe(task *taskwarrior.Task) string {
	var b strings.Builder
	if len(task.Tags) > 0 {
		for _, tag := range task.Tags {
			fmt.Fprintf(&b, "#%s ", tag)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Status: %s\n", task.Status)
	if task.Project != "" {
		fmt.Fprintf(&b, "Project: %s\n", task.Project)
	}
	if task.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	}
	if task.Progress != nil {
		fmt.Fprintf(&b, "Progress: %d%%\n", *task.Progress)
	}
	fmt.Fprintf(&b, "UUID: %s\n", task.UUID)

	if task.UDALen() > 0 {
		b.WriteString("\nAttributes:\n")
		task.UDAs(func(k, v string) bool {
			fmt.Fprintf(&b, "• %s: %s\n", k, v)
			return true
		})
	}

	if len(task.Annotations) > 0 {
		b.WriteString("\nNotes:\n")
		for _, a := range task.Annotations {
			fmt.Fprintf(&b, "‣ %s (%s)\n", a.Description, a.Entry.Format("2006-01-02"))
		}
	}
	return b.String()
}

// EventNeedsUpdate returns a patch holding the fields of target that differ
// from existing, or nil when nothing changed.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	sameStart, err := sameInstant(existing.Start, target.Start)
	if err != nil {
		return nil, err
	}
	sameEnd, err := sameInstant(existing.End, target.End)
	if err != nil {
		return nil, err
	}
	if !sameStart || !sameEnd {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameInstant(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	at, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	bt, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return at.Equal(bt), nil
}

// Fingerprint hashes the event fields SyncTask writes.
func Fingerprint(e *calendar.Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", e.Summary, e.Description, e.ColorId)
	for _, dt := range []*calendar.EventDateTime{e.Start, e.End} {
		if dt != nil {
			fmt.Fprint(h, dt.DateTime)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
