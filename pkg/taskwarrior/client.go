package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/tidwall/gjson"
)

// Client runs the task binary.
type Client struct {
	command string
}

func NewClient(command string) *Client {
	if command == "" {
		command = "task"
	}
	return &Client{command: command}
}

// Export runs `task <filter> export` and decodes the result.
func (c *Client) Export(ctx context.Context, filter ...string) (*Batch, error) {
	args := append(append([]string{}, filter...), "export", "rc.hooks=0")
	cmd := exec.CommandContext(ctx, c.command, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return ParseBatch(bytes.NewReader(output))
}

// Import pipes tasks into `task import`.
func (c *Client) Import(ctx context.Context, tasks []*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := WriteBatch(&buf, tasks); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, c.command, "import", "rc.hooks=0")
	cmd.Stdin = &buf
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("taskwarrior import failed: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// SyncError is a task document that could not be decoded. UUID is set when the
// document carried a string uuid.
type SyncError struct {
	Index int
	UUID  string
	Err   error
}

func (e *SyncError) Error() string {
	if e.UUID != "" {
		return fmt.Sprintf("task %s: %v", e.UUID, e.Err)
	}
	return fmt.Sprintf("task #%d: %v", e.Index, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Batch is the result of decoding several task documents. A document that
// fails to decode is reported in Errors and does not affect the others.
type Batch struct {
	Tasks  []*Task
	Errors []*SyncError
}

func (b *Batch) add(index int, doc gjson.Result) {
	t, err := Decode(doc)
	if err != nil {
		se := &SyncError{Index: index, Err: err}
		if id := doc.Get(keyUUID); KindOf(id) == KindString {
			se.UUID = id.Str
		}
		b.Errors = append(b.Errors, se)
		return
	}
	b.Tasks = append(b.Tasks, t)
}

// ParseBatch reads a JSON array of tasks, a stream of task objects (as hooks
// receive them), or any mix of the two. Only malformed JSON aborts the read.
func ParseBatch(r io.Reader) (*Batch, error) {
	b := &Batch{}
	decoder := json.NewDecoder(r)
	index := 0
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		doc := gjson.ParseBytes(raw)
		if doc.IsArray() {
			doc.ForEach(func(_, el gjson.Result) bool {
				b.add(index, el)
				index++
				return true
			})
			continue
		}
		b.add(index, doc)
		index++
	}
	return b, nil
}

// WriteBatch writes tasks as a JSON array.
func WriteBatch(w io.Writer, tasks []*Task) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, t := range tasks {
		if i > 0 {
			buf.WriteString(",\n")
		}
		out, err := Encode(t)
		if err != nil {
			return fmt.Errorf("task %s: %w", t.UUID, err)
		}
		buf.Write(out)
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}
