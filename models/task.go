package models

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateCreated        State = "created"
	StateFetching       State = "fetching"
	StateSampling       State = "sampling"
	StatePublishing     State = "publishing"
	StateExtractingText State = "extracting_text"
	StateDescribing     State = "describing"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// next holds the only forward transition allowed out of each state.
var next = map[State]State{
	StateCreated:        StateFetching,
	StateFetching:       StateSampling,
	StateSampling:       StatePublishing,
	StatePublishing:     StateExtractingText,
	StateExtractingText: StateDescribing,
	StateDescribing:     StateCompleted,
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Task is one pipeline invocation. Its id namespaces every directory and
// remote path it touches.
type Task struct {
	ID        string
	SourceURL string
	Interval  float64
	State     State
	VideoDir  string
	FramesDir string
	CreatedAt time.Time

	// FailedIn is the state the task was in when it failed.
	FailedIn State
}

func NewTask(sourceURL string, interval float64, workDir string) *Task {
	id := uuid.New().String()
	return &Task{
		ID:        id,
		SourceURL: sourceURL,
		Interval:  interval,
		State:     StateCreated,
		VideoDir:  filepath.Join(workDir, "videos", id),
		FramesDir: filepath.Join(workDir, "frames", id),
		CreatedAt: time.Now().UTC(),
	}
}

// Advance moves the task to to, which must be the successor of the current
// state.
func (t *Task) Advance(to State) error {
	if t.State.Terminal() {
		return fmt.Errorf("task %s is already %s", t.ID, t.State)
	}
	if next[t.State] != to {
		return fmt.Errorf("invalid transition %s -> %s", t.State, to)
	}
	t.State = to
	return nil
}

// Fail moves the task to the absorbing failed state.
func (t *Task) Fail() error {
	if t.State.Terminal() {
		return fmt.Errorf("task %s is already %s", t.ID, t.State)
	}
	t.FailedIn = t.State
	t.State = StateFailed
	return nil
}
