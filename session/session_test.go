package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dikto/errs"
	"dikto/pipeline"
)

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	stopped  int
	aborted  int
	audio    []byte
	startErr error
	stopErr  error
}

func (f *fakeRecorder) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeRecorder) Stop() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.audio, f.stopErr
}

func (f *fakeRecorder) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted++
}

type fakeRunner struct {
	mu         sync.Mutex
	dictations int
	edits      int
	lastBase   string
	lastCtx    context.Context
	selection  string
	selErr     error
	result     pipeline.Result

	// block holds the pipeline inside a run until released.
	block chan struct{}
}

func (f *fakeRunner) Dictation(ctx context.Context, _ []byte, shouldCancel func() bool) pipeline.Result {
	f.mu.Lock()
	f.dictations++
	f.lastCtx = ctx
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if shouldCancel() {
		return pipeline.Result{Cancelled: true}
	}
	return f.result
}

func (f *fakeRunner) Edit(_ context.Context, _ []byte, base string, shouldCancel func() bool) pipeline.Result {
	f.mu.Lock()
	f.edits++
	f.lastBase = base
	f.mu.Unlock()
	if shouldCancel() {
		return pipeline.Result{Cancelled: true}
	}
	return f.result
}

func (f *fakeRunner) CaptureSelection(context.Context) (string, error) {
	return f.selection, f.selErr
}

type results struct {
	mu   sync.Mutex
	list []pipeline.Result
}

func (r *results) add(res pipeline.Result, _ Mode) {
	r.mu.Lock()
	r.list = append(r.list, res)
	r.mu.Unlock()
}

func (r *results) wait(t *testing.T, n int) []pipeline.Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		got := len(r.list)
		r.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) < n {
		t.Fatalf("got %d results, want %d", len(r.list), n)
	}
	return append([]pipeline.Result(nil), r.list...)
}

func newController(rec *fakeRecorder, run *fakeRunner, sink *results) *Controller {
	return &Controller{Recorder: rec, Runner: run, OnResult: sink.add}
}

func TestDictationToggleCycle(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{result: pipeline.Result{OK: true, Text: "hello"}}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)
	if c.State() != Recording {
		t.Fatalf("state = %v after first toggle", c.State())
	}
	if rec.started != 1 {
		t.Errorf("recorder started %d times", rec.started)
	}

	c.Toggle(ModeDictation)
	got := sink.wait(t, 1)
	if !got[0].OK || got[0].Text != "hello" {
		t.Errorf("result = %+v", got[0])
	}
	if !c.WaitIdle(time.Second) {
		t.Error("controller did not return to idle")
	}
	if run.dictations != 1 {
		t.Errorf("dictations = %d", run.dictations)
	}
}

func TestTogglesIgnoredWhileProcessing(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{result: pipeline.Result{OK: true}, block: make(chan struct{})}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)
	c.Toggle(ModeDictation)

	// Pipeline is blocked; extra toggles must not start anything.
	waitState(t, c, Processing)
	c.Toggle(ModeDictation)
	c.Toggle(ModeEdit)
	if rec.started != 1 {
		t.Errorf("recorder started %d times during processing", rec.started)
	}

	close(run.block)
	sink.wait(t, 1)
	c.WaitIdle(time.Second)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

// waitRunnerCtx blocks until the pipeline goroutine has entered the
// runner and returns the context it was handed.
func waitRunnerCtx(t *testing.T, f *fakeRunner) context.Context {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		ctx := f.lastCtx
		f.mu.Unlock()
		if ctx != nil {
			return ctx
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("runner never entered")
	return nil
}

func TestModeMismatchIgnored(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{selection: "text"}
	c := newController(rec, run, &results{})

	c.Toggle(ModeDictation)
	c.Toggle(ModeEdit)

	if c.State() != Recording {
		t.Fatalf("state = %v, edit toggle must not stop a dictation", c.State())
	}
	if rec.stopped != 0 {
		t.Errorf("recorder stopped %d times", rec.stopped)
	}
}

func TestEditCapturesSelectionBeforeRecording(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{selection: "selected paragraph", result: pipeline.Result{OK: true}}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeEdit)
	if c.State() != Recording {
		t.Fatalf("state = %v", c.State())
	}
	c.Toggle(ModeEdit)

	sink.wait(t, 1)
	if run.lastBase != "selected paragraph" {
		t.Errorf("base = %q", run.lastBase)
	}
}

func TestEditRefusesEmptySelection(t *testing.T) {
	rec := &fakeRecorder{}
	run := &fakeRunner{selection: ""}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeEdit)

	got := sink.wait(t, 1)
	if got[0].OK || got[0].Category != errs.EditMode {
		t.Fatalf("result = %+v, want edit-mode failure", got[0])
	}
	if rec.started != 0 {
		t.Error("recording must not start without text to edit")
	}
	if c.State() != Idle {
		t.Errorf("state = %v", c.State())
	}
}

func TestRecorderStartFailure(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("device busy")}
	run := &fakeRunner{}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)

	got := sink.wait(t, 1)
	if got[0].OK || got[0].Category != errs.Audio {
		t.Fatalf("result = %+v", got[0])
	}
	if c.State() != Idle {
		t.Errorf("state = %v", c.State())
	}
}

func TestCancelWhileRecording(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)
	c.Cancel()

	if c.State() != Idle {
		t.Fatalf("state = %v", c.State())
	}
	if rec.aborted != 1 {
		t.Errorf("aborted = %d", rec.aborted)
	}
	if run.dictations != 0 {
		t.Error("cancelled recording must not reach the pipeline")
	}

	// The next utterance runs normally on a fresh generation.
	run.result = pipeline.Result{OK: true}
	c.Toggle(ModeDictation)
	c.Toggle(ModeDictation)
	got := sink.wait(t, 1)
	if !got[0].OK {
		t.Errorf("result after cancel = %+v", got[0])
	}
}

func TestCancelWhileProcessing(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{result: pipeline.Result{OK: true}, block: make(chan struct{})}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)
	c.Toggle(ModeDictation)
	waitState(t, c, Processing)

	c.Cancel()
	close(run.block)

	got := sink.wait(t, 1)
	if !got[0].Cancelled {
		t.Fatalf("result = %+v, want cancelled", got[0])
	}
	if !c.WaitIdle(time.Second) {
		t.Error("controller stuck after cancel")
	}
}

func TestCancelWhileProcessingReturnsToIdle(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{result: pipeline.Result{OK: true}, block: make(chan struct{})}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeDictation)
	c.Toggle(ModeDictation)
	waitState(t, c, Processing)

	ctx := waitRunnerCtx(t, run)

	// Cancel frees the controller immediately, not at the next
	// pipeline checkpoint.
	c.Cancel()
	if c.State() != Idle {
		t.Fatalf("state after cancel = %v, want idle", c.State())
	}
	if ctx.Err() == nil {
		t.Error("cancel must tear down the in-flight pipeline context")
	}

	// A new utterance starts right away.
	c.Toggle(ModeDictation)
	if c.State() != Recording {
		t.Fatalf("state = %v, want recording right after cancel", c.State())
	}
	if rec.started != 2 {
		t.Fatalf("recorder started %d times, want 2", rec.started)
	}

	// The stale completion reports cancelled and leaves the new
	// session alone.
	close(run.block)
	got := sink.wait(t, 1)
	if !got[0].Cancelled {
		t.Fatalf("result = %+v, want cancelled", got[0])
	}
	if c.State() != Recording {
		t.Errorf("state = %v, stale completion must not reset a live session", c.State())
	}
}

func TestCancelWhileIdleIsNoop(t *testing.T) {
	rec := &fakeRecorder{}
	c := newController(rec, &fakeRunner{}, &results{})

	c.Cancel()

	if c.State() != Idle || rec.aborted != 0 {
		t.Errorf("state = %v, aborted = %d", c.State(), rec.aborted)
	}
}

func TestCancelClearsPendingEditText(t *testing.T) {
	rec := &fakeRecorder{audio: []byte{1}}
	run := &fakeRunner{selection: "first selection", result: pipeline.Result{OK: true}}
	sink := &results{}
	c := newController(rec, run, sink)

	c.Toggle(ModeEdit)
	c.Cancel()

	run.selection = "second selection"
	c.Toggle(ModeEdit)
	c.Toggle(ModeEdit)

	sink.wait(t, 1)
	if run.lastBase != "second selection" {
		t.Errorf("base = %q, stale capture survived cancel", run.lastBase)
	}
}
