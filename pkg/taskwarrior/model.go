package taskwarrior

import (
	"slices"
	"time"

	"github.com/elliotchance/orderedmap/v3"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"
	RECURRING = "recurring"
)

// Annotation is a timestamped note attached to a task.
type Annotation struct {
	Description string
	Entry       time.Time
}

// Task is one record of the TaskWarrior export format.
//
// UUID, Status, Entry and Description are always set on a decoded task.
// String fields are absent when empty; pointer fields when nil.
// Times travel at whole-second resolution; NewTask and AddAnnotation truncate,
// values assigned directly should be whole seconds too.
// Wire keys that are not known fields are kept, in order, as UDAs.
type Task struct {
	UUID        string
	Status      string
	Entry       time.Time
	Description string

	Priority       string
	PriorityNumber *int
	Progress       *int
	Project        string
	Modified       *time.Time
	Due            *time.Time
	Reminder       *time.Time
	Until          *time.Time
	Annotations    []Annotation
	Depends        []string
	Tags           []string
	Recur          string
	Imask          *int
	Parent         string
	Mask           string

	udas *orderedmap.OrderedMap[string, string]
}

// NewTask returns a task holding only the required fields. entry is truncated
// to the second.
func NewTask(uuid, status string, entry time.Time, description string) *Task {
	return &Task{
		UUID:        uuid,
		Status:      status,
		Entry:       entry.UTC().Truncate(time.Second),
		Description: description,
		udas:        orderedmap.NewOrderedMap[string, string](),
	}
}

func (t *Task) AddAnnotation(description string, entry time.Time) {
	t.Annotations = append(t.Annotations, Annotation{Description: description, Entry: entry.UTC().Truncate(time.Second)})
}

func (t *Task) AddDepends(uuids ...string) {
	t.Depends = append(t.Depends, uuids...)
}

func (t *Task) AddTags(tags ...string) {
	t.Tags = append(t.Tags, tags...)
}

func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// SetUDA stores a user defined attribute. Re-setting a key keeps its original position.
func (t *Task) SetUDA(key, value string) error {
	if isKnownKey(key) {
		return ErrReservedKey
	}
	if t.udas == nil {
		t.udas = orderedmap.NewOrderedMap[string, string]()
	}
	t.udas.Set(key, value)
	return nil
}

func (t *Task) UDA(key string) (string, bool) {
	if t.udas == nil {
		return "", false
	}
	return t.udas.Get(key)
}

func (t *Task) RemoveUDA(key string) {
	if t.udas != nil {
		t.udas.Delete(key)
	}
}

// UDAKeys returns the UDA keys in insertion order.
func (t *Task) UDAKeys() []string {
	if t.udas == nil {
		return nil
	}
	keys := make([]string, 0, t.udas.Len())
	for k := range t.udas.Keys() {
		keys = append(keys, k)
	}
	return keys
}

// UDAs calls fn for each UDA in insertion order until fn returns false.
func (t *Task) UDAs(fn func(key, value string) bool) {
	if t.udas == nil {
		return
	}
	for k, v := range t.udas.AllFromFront() {
		if !fn(k, v) {
			return
		}
	}
}

func (t *Task) UDALen() int {
	if t.udas == nil {
		return 0
	}
	return t.udas.Len()
}

// LastModified returns Modified, or Entry when the task was never modified.
func (t *Task) LastModified() time.Time {
	if t.Modified != nil {
		return *t.Modified
	}
	return t.Entry
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.PriorityNumber = cloneInt(t.PriorityNumber)
	c.Progress = cloneInt(t.Progress)
	c.Imask = cloneInt(t.Imask)
	c.Modified = cloneTime(t.Modified)
	c.Due = cloneTime(t.Due)
	c.Reminder = cloneTime(t.Reminder)
	c.Until = cloneTime(t.Until)
	c.Annotations = slices.Clone(t.Annotations)
	c.Depends = slices.Clone(t.Depends)
	c.Tags = slices.Clone(t.Tags)
	c.udas = orderedmap.NewOrderedMap[string, string]()
	t.UDAs(func(k, v string) bool {
		c.udas.Set(k, v)
		return true
	})
	return &c
}

// Equal reports whether t and o hold the same values, including UDA order.
func (t *Task) Equal(o *Task) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.UUID != o.UUID || t.Status != o.Status || !t.Entry.Equal(o.Entry) || t.Description != o.Description {
		return false
	}
	if t.Priority != o.Priority || t.Project != o.Project || t.Recur != o.Recur || t.Parent != o.Parent || t.Mask != o.Mask {
		return false
	}
	if !equalInt(t.PriorityNumber, o.PriorityNumber) || !equalInt(t.Progress, o.Progress) || !equalInt(t.Imask, o.Imask) {
		return false
	}
	if !equalTime(t.Modified, o.Modified) || !equalTime(t.Due, o.Due) || !equalTime(t.Reminder, o.Reminder) || !equalTime(t.Until, o.Until) {
		return false
	}
	if !slices.Equal(t.Depends, o.Depends) || !slices.Equal(t.Tags, o.Tags) {
		return false
	}
	if !slices.EqualFunc(t.Annotations, o.Annotations, func(a, b Annotation) bool {
		return a.Description == b.Description && a.Entry.Equal(b.Entry)
	}) {
		return false
	}
	if t.UDALen() != o.UDALen() {
		return false
	}
	ok := slices.Equal(t.UDAKeys(), o.UDAKeys())
	t.UDAs(func(k, v string) bool {
		ov, _ := o.UDA(k)
		ok = ok && ov == v
		return ok
	})
	return ok
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
