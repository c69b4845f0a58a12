package taskwarrior

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func fullTask(t *testing.T) *Task {
	t.Helper()
	task := NewTask("f45a05b3-c12e-42e5-9c9c-333333333333", PENDING, date("20230101T120000Z"), `Buy "oat" milk`)
	n, p, m := 2, 40, 7
	mod, due := date("20230102T080000Z"), date("20230103T120000Z")
	rem, until := date("20230103T100000Z"), date("20230301T000000Z")
	task.Priority = "M"
	task.PriorityNumber = &n
	task.Progress = &p
	task.Imask = &m
	task.Project = "home.kitchen"
	task.Modified = &mod
	task.Due = &due
	task.Reminder = &rem
	task.Until = &until
	task.Recur = "monthly"
	task.Parent = "11111111-2222-3333-4444-555555555555"
	task.Mask = "-+"
	task.AddAnnotation("first", date("20230101T130000Z"))
	task.AddAnnotation("second", date("20230101T140000Z"))
	task.AddDepends("aaa", "bbb")
	task.AddTags("shop", "next", "shop")
	require.NoError(t, task.SetUDA("estimate", "PT1H"))
	require.NoError(t, task.SetUDA("client.name", "ACME"))
	require.NoError(t, task.SetUDA("42", "answer"))
	return task
}

func TestRoundTrip(t *testing.T) {
	tasks := []*Task{
		NewTask("u-1", COMPLETED, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), "minimal"),
		fullTask(t),
	}
	for _, task := range tasks {
		out, err := Encode(task)
		require.NoError(t, err)
		require.True(t, gjson.ValidBytes(out), string(out))

		back, err := Unmarshal(out)
		require.NoError(t, err, string(out))
		assert.True(t, task.Equal(back), "round trip changed task:\n%s", out)
	}
}

func TestEncodeKeyOrderAndShape(t *testing.T) {
	out, err := Encode(fullTask(t))
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)

	var keys []string
	doc.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{
		"uuid", "status", "entry", "description",
		"priority", "priorityNumber", "progress", "project", "modified",
		"due", "reminder", "until", "annotations", "depends", "tags",
		"recur", "imask", "parent", "mask",
		"estimate", "client.name", "42",
	}, keys)

	assert.Equal(t, "aaa,bbb", doc.Get("depends").String())
	assert.Equal(t, gjson.Number, doc.Get("priorityNumber").Type)
	assert.Equal(t, "20230101T120000Z", doc.Get("entry").String())
	assert.Equal(t, "20230101T130000Z", doc.Get("annotations.0.entry").String())
	assert.Equal(t, `Buy "oat" milk`, doc.Get("description").String())
}

func TestEncodeOmitsAbsentFields(t *testing.T) {
	task := NewTask("u-1", PENDING, date("20140101T000000Z"), "x")
	out, err := Encode(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"u-1","status":"pending","entry":"20140101T000000Z","description":"x"}`, string(out))
}

func TestEncodeNormalizesFloatNumbers(t *testing.T) {
	task, err := Unmarshal([]byte(withField("priorityNumber", `3.0`)))
	require.NoError(t, err)
	out, err := Encode(task)
	require.NoError(t, err)
	assert.Equal(t, "3", gjson.GetBytes(out, "priorityNumber").Raw)
}

func TestEncodeWritesModifiedForModification(t *testing.T) {
	task, err := Unmarshal([]byte(withField("modification", `"20140101T000000Z"`)))
	require.NoError(t, err)
	out, err := Encode(task)
	require.NoError(t, err)
	assert.Equal(t, "20140101T000000Z", gjson.GetBytes(out, "modified").String())
	assert.False(t, gjson.GetBytes(out, "modification").Exists())
}

func TestSetUDARejectsKnownKeys(t *testing.T) {
	task := NewTask("u", PENDING, time.Now(), "x")
	for _, key := range KnownKeys() {
		assert.ErrorIs(t, task.SetUDA(key, "v"), ErrReservedKey, key)
	}
	assert.Zero(t, task.UDALen())
}

func TestMarshalJSONInterface(t *testing.T) {
	task := fullTask(t)
	out, err := json.Marshal([]*Task{task})
	require.NoError(t, err)

	var back []*Task
	require.NoError(t, json.Unmarshal(out, &back))
	require.Len(t, back, 1)
	assert.True(t, task.Equal(back[0]))
}

func TestCloneIsDeep(t *testing.T) {
	task := fullTask(t)
	c := task.Clone()
	require.True(t, task.Equal(c))

	*c.PriorityNumber = 9
	c.Tags[0] = "changed"
	require.NoError(t, c.SetUDA("estimate", "PT2H"))
	assert.Equal(t, 2, *task.PriorityNumber)
	assert.Equal(t, "shop", task.Tags[0])
	v, _ := task.UDA("estimate")
	assert.Equal(t, "PT1H", v)
	assert.False(t, task.Equal(c))
}

func TestRoundTripArbitraryUDAKeys(t *testing.T) {
	keys := []string{"", "a|b", "#", "@this", `a\b`, "x.y", "7", `say "hi"`, "a*b?c"}
	task := NewTask("u-keys", PENDING, date("20230101T120000Z"), "odd keys")
	for i, key := range keys {
		require.NoError(t, task.SetUDA(key, fmt.Sprintf("v%d", i)), key)
	}

	out, err := Encode(task)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(out), string(out))

	back, err := Unmarshal(out)
	require.NoError(t, err, string(out))
	assert.Equal(t, keys, back.UDAKeys())
	assert.True(t, task.Equal(back), "round trip changed task:\n%s", out)
}

func TestRoundTripDecodedEmptyKey(t *testing.T) {
	raw := `{"uuid":"b","status":"pending","entry":"20240101T000000Z","description":"d","":"x"}`
	task, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	v, ok := task.UDA("")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	out, err := Encode(task)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestNewTaskTruncatesToWireResolution(t *testing.T) {
	entry := time.Date(2023, 1, 1, 12, 0, 0, 500*int(time.Millisecond), time.UTC)
	task := NewTask("u-ms", PENDING, entry, "sub-second")
	task.AddAnnotation("note", entry.Add(250*time.Millisecond))
	assert.Zero(t, task.Entry.Nanosecond())
	assert.Zero(t, task.Annotations[0].Entry.Nanosecond())

	out, err := Encode(task)
	require.NoError(t, err)
	back, err := Unmarshal(out)
	require.NoError(t, err)
	assert.True(t, task.Equal(back))
}
