package session

import (
	"context"
	"sync"
	"time"

	"dikto/errs"
	"dikto/log"
	"dikto/pipeline"
)

type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "idle"
	}
}

type Mode string

const (
	ModeDictation Mode = "dictation"
	ModeEdit      Mode = "edit"
)

// Recorder captures one utterance. Stop returns the encoded audio,
// Abort discards whatever was captured.
type Recorder interface {
	Start() error
	Stop() ([]byte, error)
	Abort()
}

// Runner executes the post-recording work.
type Runner interface {
	Dictation(ctx context.Context, audio []byte, shouldCancel func() bool) pipeline.Result
	Edit(ctx context.Context, audio []byte, pendingBase string, shouldCancel func() bool) pipeline.Result
	CaptureSelection(ctx context.Context) (string, error)
}

// Controller is the hotkey-driven state machine. One utterance at a
// time: a toggle while idle starts recording, a toggle while recording
// stops it and hands the audio to the pipeline, and everything else is
// ignored until the pipeline finishes.
type Controller struct {
	Recorder Recorder
	Runner   Runner

	// OnState fires on every transition, OnResult when a pipeline run
	// finishes. Both may be nil.
	OnState  func(State, Mode)
	OnResult func(pipeline.Result, Mode)

	mu          sync.Mutex
	state       State
	mode        Mode
	generation  uint64
	pendingEdit string

	// runCancel tears down the in-flight pipeline's context on Cancel
	// so network calls do not run to completion just to be discarded.
	runCancel context.CancelFunc
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Controller) notifyState(s State, m Mode) {
	if c.OnState != nil {
		c.OnState(s, m)
	}
}

func (c *Controller) notifyResult(r pipeline.Result, m Mode) {
	if c.OnResult != nil {
		c.OnResult(r, m)
	}
}

// Toggle starts or stops a recording for the given mode. A toggle in a
// different mode than the active recording is ignored, as is any
// toggle while a previous utterance is still processing.
func (c *Controller) Toggle(mode Mode) {
	c.mu.Lock()
	switch c.state {
	case Processing:
		c.mu.Unlock()
		log.Info("toggle_ignored_processing")
		return
	case Recording:
		if c.mode != mode {
			c.mu.Unlock()
			log.Info("toggle_ignored_mode_mismatch")
			return
		}
		c.state = Processing
		snapshot := c.generation
		base := c.pendingEdit
		c.pendingEdit = ""
		ctx, cancel := context.WithCancel(context.Background())
		c.runCancel = cancel
		c.mu.Unlock()

		c.notifyState(Processing, mode)
		go c.process(ctx, mode, base, snapshot)
		return
	}
	// Idle
	c.mu.Unlock()
	c.start(mode)
}

func (c *Controller) start(mode Mode) {
	base := ""
	if mode == ModeEdit {
		// Capture the selection before the recording so the user can
		// move focus away while speaking the instruction.
		text, err := c.Runner.CaptureSelection(context.Background())
		if err != nil {
			c.notifyResult(failure(err), mode)
			return
		}
		if text == "" {
			c.notifyResult(failure(errs.EditNoText()), mode)
			return
		}
		base = text
	}

	if err := c.Recorder.Start(); err != nil {
		log.Errorf("recorder start: %v", err)
		c.notifyResult(failure(&errs.Error{
			Category:    errs.Audio,
			Message:     err.Error(),
			UserMessage: err.Error(),
		}), mode)
		return
	}

	c.mu.Lock()
	c.state = Recording
	c.mode = mode
	c.pendingEdit = base
	c.mu.Unlock()
	c.notifyState(Recording, mode)
}

func (c *Controller) process(ctx context.Context, mode Mode, base string, snapshot uint64) {
	audio, err := c.Recorder.Stop()

	shouldCancel := func() bool { return c.gen() != snapshot }

	var r pipeline.Result
	switch {
	case shouldCancel():
		r = pipeline.Result{Cancelled: true}
	case err != nil:
		log.Errorf("recorder stop: %v", err)
		r = failure(&errs.Error{
			Category:    errs.Audio,
			Message:     err.Error(),
			UserMessage: err.Error(),
		})
	case mode == ModeEdit:
		r = c.Runner.Edit(ctx, audio, base, shouldCancel)
	default:
		r = c.Runner.Dictation(ctx, audio, shouldCancel)
	}

	// A cancelled run reports as cancelled even when the torn-down
	// network call surfaced its own error first.
	if shouldCancel() && !r.Cancelled {
		r = pipeline.Result{Cancelled: true}
	}

	// A stale completion must not touch the state: Cancel already reset
	// it, and a new session may have started since.
	c.mu.Lock()
	stale := c.generation != snapshot
	if !stale {
		if c.runCancel != nil {
			c.runCancel()
			c.runCancel = nil
		}
		if c.state == Processing {
			c.state = Idle
		}
	}
	c.mu.Unlock()

	if !stale {
		c.notifyState(Idle, mode)
	}
	c.notifyResult(r, mode)
}

// Cancel abandons the in-flight utterance, whatever stage it is in.
// The controller returns to idle immediately; work already handed to
// the pipeline notices through its cancelled context and generation
// checks, and its late result is discarded.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.generation++
	prev := c.state
	mode := c.mode
	c.pendingEdit = ""
	c.state = Idle
	cancel := c.runCancel
	c.runCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if prev == Recording {
		c.Recorder.Abort()
	}
	if prev != Idle {
		c.notifyState(Idle, mode)
		log.Info("cancelled_" + prev.String())
	}
}

func failure(err error) pipeline.Result {
	var typed *errs.Error
	if e, ok := err.(*errs.Error); ok {
		typed = e
	} else {
		typed = &errs.Error{Category: errs.Unknown, Message: err.Error(), UserMessage: err.Error()}
	}
	return pipeline.Result{
		Err:      typed.UserMessage,
		Category: typed.Category,
		CanRetry: typed.Retryable,
	}
}

// WaitIdle blocks until the controller returns to idle or the timeout
// passes. Test mode uses it to run utterances synchronously.
func (c *Controller) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == Idle {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.State() == Idle
}
