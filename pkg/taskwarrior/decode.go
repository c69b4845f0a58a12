package taskwarrior

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid json")

type decodeState struct {
	task        *Task
	sawModified bool
}

// Unmarshal parses one task object from raw JSON.
func Unmarshal(data []byte) (*Task, error) {
	if !gjson.ValidBytes(data) {
		return nil, errInvalidJSON
	}
	return Decode(gjson.ParseBytes(data))
}

// Decode builds a Task from a parsed JSON object. The four required fields are
// checked first; then every key is dispatched in document order to its field
// decoder or, when unknown, stored as a UDA. The first error aborts the decode
// and no task is returned.
func Decode(doc gjson.Result) (*Task, error) {
	if kind := KindOf(doc); kind != KindObject {
		return nil, &FieldError{Key: "task", Expected: "object", Actual: kind}
	}

	var required [4]string
	for i, key := range [...]string{keyUUID, keyStatus, keyEntry, keyDescription} {
		v := doc.Get(key)
		if kind := KindOf(v); kind != KindString {
			return nil, &MissingFieldError{Key: key, Actual: kind}
		}
		required[i] = v.Str
	}
	entry, err := ParseDate(required[2])
	if err != nil {
		return nil, &FieldError{Key: keyEntry, Expected: "date " + DateLayout, Actual: KindString, Err: err}
	}

	d := &decodeState{task: NewTask(required[0], required[1], entry, required[3])}
	doc.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		f, ok := fieldIndex[key]
		switch {
		case !ok:
			// Known keys never reach the bag, so SetUDA cannot fail here.
			_ = d.task.SetUDA(key, udaValue(v))
		case f.decode != nil:
			err = f.decode(d, v)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return d.task, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Task) UnmarshalJSON(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}
