package transcriber

import (
	"context"
	"sync"

	"dikto/errs"
)

// Fake is a test double that records calls and returns canned results.
// Calls counts simulated network requests, so the empty-audio fast
// path leaves it untouched, matching the real client.
type Fake struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls int
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Transcribe(_ context.Context, audio []byte, _, _ string) (*Result, error) {
	if len(audio) == 0 {
		return nil, errs.EmptyAudio()
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return &Result{
		Text:    f.Text,
		Metrics: &NetworkMetrics{},
	}, nil
}
