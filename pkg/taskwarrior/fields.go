package taskwarrior

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// field binds a wire key to its decoder and encoder. encode returns false when
// the field is absent and must not be emitted.
type field struct {
	key    string
	decode func(d *decodeState, v gjson.Result) error
	encode func(t *Task) (any, bool)
}

const (
	keyUUID         = "uuid"
	keyStatus       = "status"
	keyEntry        = "entry"
	keyDescription  = "description"
	keyModified     = "modified"
	keyModification = "modification"
)

// fields lists every known wire key in the order the encoder emits them.
var fields = []field{
	{key: keyUUID, encode: func(t *Task) (any, bool) { return t.UUID, true }},
	{key: keyStatus, encode: func(t *Task) (any, bool) { return t.Status, true }},
	{key: keyEntry, encode: func(t *Task) (any, bool) { return FormatDate(t.Entry), true }},
	{key: keyDescription, encode: func(t *Task) (any, bool) { return t.Description, true }},
	{
		key:    "priority",
		decode: stringField("priority", func(t *Task, s string) { t.Priority = s }),
		encode: func(t *Task) (any, bool) { return t.Priority, t.Priority != "" },
	},
	{
		key:    "priorityNumber",
		decode: intField("priorityNumber", func(t *Task, n int) { t.PriorityNumber = &n }),
		encode: func(t *Task) (any, bool) { return intValue(t.PriorityNumber) },
	},
	{
		key:    "progress",
		decode: intField("progress", func(t *Task, n int) { t.Progress = &n }),
		encode: func(t *Task) (any, bool) { return intValue(t.Progress) },
	},
	{
		key:    "project",
		decode: stringField("project", func(t *Task, s string) { t.Project = s }),
		encode: func(t *Task) (any, bool) { return t.Project, t.Project != "" },
	},
	{
		key:    keyModified,
		decode: decodeModified,
		encode: func(t *Task) (any, bool) { return dateValue(t.Modified) },
	},
	{key: keyModification, decode: decodeModification},
	{
		key:    "due",
		decode: dateField("due", func(t *Task, at time.Time) { t.Due = &at }),
		encode: func(t *Task) (any, bool) { return dateValue(t.Due) },
	},
	{
		key:    "reminder",
		decode: dateField("reminder", func(t *Task, at time.Time) { t.Reminder = &at }),
		encode: func(t *Task) (any, bool) { return dateValue(t.Reminder) },
	},
	{
		key:    "until",
		decode: dateField("until", func(t *Task, at time.Time) { t.Until = &at }),
		encode: func(t *Task) (any, bool) { return dateValue(t.Until) },
	},
	{key: "annotations", decode: decodeAnnotations, encode: encodeAnnotations},
	{
		key:    "depends",
		decode: decodeDepends,
		encode: func(t *Task) (any, bool) { return strings.Join(t.Depends, ","), len(t.Depends) > 0 },
	},
	{key: "tags", decode: decodeTags, encode: func(t *Task) (any, bool) { return t.Tags, len(t.Tags) > 0 }},
	{
		key:    "recur",
		decode: stringField("recur", func(t *Task, s string) { t.Recur = s }),
		encode: func(t *Task) (any, bool) { return t.Recur, t.Recur != "" },
	},
	{
		key:    "imask",
		decode: intField("imask", func(t *Task, n int) { t.Imask = &n }),
		encode: func(t *Task) (any, bool) { return intValue(t.Imask) },
	},
	{
		key:    "parent",
		decode: stringField("parent", func(t *Task, s string) { t.Parent = s }),
		encode: func(t *Task) (any, bool) { return t.Parent, t.Parent != "" },
	},
	{
		key:    "mask",
		decode: stringField("mask", func(t *Task, s string) { t.Mask = s }),
		encode: func(t *Task) (any, bool) { return t.Mask, t.Mask != "" },
	},
}

var fieldIndex = func() map[string]*field {
	m := make(map[string]*field, len(fields))
	for i := range fields {
		m[fields[i].key] = &fields[i]
	}
	return m
}()

func isKnownKey(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}

// KnownKeys returns the wire keys mapped to Task fields.
func KnownKeys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

func stringField(key string, set func(*Task, string)) func(*decodeState, gjson.Result) error {
	return func(d *decodeState, v gjson.Result) error {
		if err := expectKind(key, v, KindString); err != nil {
			return err
		}
		set(d.task, v.Str)
		return nil
	}
}

func dateField(key string, set func(*Task, time.Time)) func(*decodeState, gjson.Result) error {
	return func(d *decodeState, v gjson.Result) error {
		at, err := dateOf(key, v)
		if err != nil {
			return err
		}
		set(d.task, at)
		return nil
	}
}

func intField(key string, set func(*Task, int)) func(*decodeState, gjson.Result) error {
	return func(d *decodeState, v gjson.Result) error {
		n, err := intOf(key, v)
		if err != nil {
			return err
		}
		set(d.task, n)
		return nil
	}
}

func dateOf(key string, v gjson.Result) (time.Time, error) {
	if err := expectKind(key, v, KindString); err != nil {
		return time.Time{}, err
	}
	at, err := ParseDate(v.Str)
	if err != nil {
		return time.Time{}, &FieldError{Key: key, Expected: "date " + DateLayout, Actual: KindString, Err: err}
	}
	return at, nil
}

var errNotFinite = errors.New("number is not finite or out of range")

// intOf accepts a JSON number or a numeric string and truncates it toward
// zero. taskd sends integer attributes as 3.0 or "3".
func intOf(key string, v gjson.Result) (int, error) {
	kind := KindOf(v)
	var f float64
	switch kind {
	case KindNumber:
		if n, err := strconv.ParseInt(v.Raw, 10, 0); err == nil {
			return int(n), nil
		}
		f = v.Num
	case KindString:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, &FieldError{Key: key, Expected: "number", Actual: kind, Err: err}
		}
	default:
		return 0, &FieldError{Key: key, Expected: "number", Actual: kind}
	}
	if math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, &FieldError{Key: key, Expected: "number", Actual: kind, Err: errNotFinite}
	}
	return int(f), nil
}

// decodeModified and decodeModification fill the same attribute; modified
// takes precedence regardless of key order.
func decodeModified(d *decodeState, v gjson.Result) error {
	at, err := dateOf(keyModified, v)
	if err != nil {
		return err
	}
	d.task.Modified = &at
	d.sawModified = true
	return nil
}

func decodeModification(d *decodeState, v gjson.Result) error {
	at, err := dateOf(keyModification, v)
	if err != nil {
		return err
	}
	if !d.sawModified {
		d.task.Modified = &at
	}
	return nil
}

func decodeAnnotations(d *decodeState, v gjson.Result) error {
	if err := expectKind("annotations", v, KindArray); err != nil {
		return err
	}
	var err error
	i := 0
	v.ForEach(func(_, el gjson.Result) bool {
		var a Annotation
		a, err = annotationOf(i, el)
		if err != nil {
			return false
		}
		d.task.Annotations = append(d.task.Annotations, a)
		i++
		return true
	})
	return err
}

func annotationOf(i int, el gjson.Result) (Annotation, error) {
	if kind := KindOf(el); kind != KindObject {
		return Annotation{}, &AnnotationError{Index: i, Reason: "is a " + kind.String() + ", want object"}
	}
	var (
		a            Annotation
		descr, entry bool
		err          error
	)
	el.ForEach(func(k, sub gjson.Result) bool {
		switch k.Str {
		case keyDescription:
			if kind := KindOf(sub); kind != KindString {
				err = &AnnotationError{Index: i, Reason: "description is a " + kind.String()}
				return false
			}
			a.Description, descr = sub.Str, true
		case keyEntry:
			if kind := KindOf(sub); kind != KindString {
				err = &AnnotationError{Index: i, Reason: "entry is a " + kind.String()}
				return false
			}
			at, perr := ParseDate(sub.Str)
			if perr != nil {
				err = &AnnotationError{Index: i, Reason: "invalid entry", Err: perr}
				return false
			}
			a.Entry, entry = at, true
		default:
			err = &AnnotationError{Index: i, Reason: fmt.Sprintf("unexpected key %q", k.Str)}
			return false
		}
		return true
	})
	if err != nil {
		return Annotation{}, err
	}
	switch {
	case !descr:
		return Annotation{}, &AnnotationError{Index: i, Reason: "description is missing"}
	case !entry:
		return Annotation{}, &AnnotationError{Index: i, Reason: "entry is missing"}
	}
	return a, nil
}

func encodeAnnotations(t *Task) (any, bool) {
	if len(t.Annotations) == 0 {
		return nil, false
	}
	out := make([]wireAnnotation, len(t.Annotations))
	for i, a := range t.Annotations {
		out[i] = wireAnnotation{Entry: FormatDate(a.Entry), Description: a.Description}
	}
	return out, true
}

type wireAnnotation struct {
	Entry       string `json:"entry"`
	Description string `json:"description"`
}

// decodeDepends splits the comma joined uuid list. Empty segments are dropped.
// TaskWarrior 2.6 exports an array of strings instead, which is accepted too.
func decodeDepends(d *decodeState, v gjson.Result) error {
	switch KindOf(v) {
	case KindString:
		for _, dep := range strings.Split(v.Str, ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				d.task.AddDepends(dep)
			}
		}
		return nil
	case KindArray:
		var err error
		v.ForEach(func(_, el gjson.Result) bool {
			if kind := KindOf(el); kind != KindString {
				err = &FieldError{Key: "depends", Expected: "array of strings", Actual: kind}
				return false
			}
			if dep := strings.TrimSpace(el.Str); dep != "" {
				d.task.AddDepends(dep)
			}
			return true
		})
		return err
	default:
		return &FieldError{Key: "depends", Expected: "string", Actual: KindOf(v)}
	}
}

func decodeTags(d *decodeState, v gjson.Result) error {
	if err := expectKind("tags", v, KindArray); err != nil {
		return err
	}
	var err error
	v.ForEach(func(_, el gjson.Result) bool {
		if kind := KindOf(el); kind != KindString {
			err = &FieldError{Key: "tags", Expected: "array of strings", Actual: kind}
			return false
		}
		d.task.AddTags(el.Str)
		return true
	})
	return err
}

// udaValue renders any JSON value as the string stored in the UDA bag.
func udaValue(v gjson.Result) string {
	switch KindOf(v) {
	case KindString:
		return v.Str
	case KindNull, KindMissing:
		return ""
	default:
		return v.Raw
	}
}

func intValue(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func dateValue(p *time.Time) (any, bool) {
	if p == nil {
		return nil, false
	}
	return FormatDate(*p), true
}
