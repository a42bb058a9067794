// Package pipeline chains transcription, text transformation, and
// clipboard delivery for the two recording modes. Every stage is
// preceded by a cancellation checkpoint and wrapped in the shared
// timeout and retry machinery.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"dikto/errs"
	"dikto/log"
	"dikto/retry"
	"dikto/transcriber"
)

// Ops is the platform side-effect surface the pipelines consume:
// clipboard storage plus copy/paste keystroke injection into the
// focused application.
type Ops interface {
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	ClearClipboard() error
	SimulateCopy() error
	SimulatePaste() error
}

type TextCleaner interface {
	Clean(ctx context.Context, raw, lang string) (string, error)
}

type TextEditor interface {
	Apply(ctx context.Context, instruction, base, lang string) (string, error)
}

// Result is the three-way outcome surface: success, partial success
// (text delivered to the clipboard but auto-paste failed), or hard
// failure. Cancellation is not a failure and carries no error text.
type Result struct {
	OK        bool
	Text      string
	Warning   string
	Err       string
	Category  errs.Category
	CanRetry  bool
	Cancelled bool
}

const defaultSettleDelay = 180 * time.Millisecond

// Pipeline holds the collaborators and per-request configuration
// snapshot shared by both modes.
type Pipeline struct {
	Transcriber transcriber.Client
	Cleaner     TextCleaner
	Editor      TextEditor
	Ops         Ops

	APIKey string
	Format string // upload format fed to the transcriber ("flac"|"wav")
	Lang   string // "pt"|"en"

	// SettleDelay is how long the edit-mode capture waits after the
	// simulated copy for the target application to populate the
	// clipboard. Zero means the default 180ms.
	SettleDelay time.Duration

	// NoPaste skips the paste keystroke and leaves the result in the
	// clipboard. Toggled from the tray while the app runs.
	NoPaste atomic.Bool
}

func (p *Pipeline) settle() time.Duration {
	if p.SettleDelay > 0 {
		return p.SettleDelay
	}
	return defaultSettleDelay
}

// guarded wraps one API stage: each retry attempt races against the
// stage's deadline, and cancellation is honored before every attempt.
func guarded[T any](ctx context.Context, name string, timeout time.Duration, shouldCancel func() bool, op func(ctx context.Context) (T, error)) (T, error) {
	return retry.Do(func() (T, error) {
		return retry.WithTimeout(ctx, name, timeout, op)
	}, retry.Config{
		IsCancelled: shouldCancel,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.RetryAttempt(name, attempt, float64(delay.Milliseconds()), err)
		},
	})
}

func checkpoint(shouldCancel func() bool) error {
	if shouldCancel != nil && shouldCancel() {
		return errs.NewCancelled()
	}
	return nil
}

// fail converts any stage error into the structured result.
func fail(err error) Result {
	if errs.IsCancelled(err) {
		return Result{Cancelled: true}
	}
	var typed *errs.Error
	if !errors.As(err, &typed) {
		typed = errs.CategorizeAPI(err)
	}
	return Result{
		Err:      typed.UserMessage,
		Category: typed.Category,
		CanRetry: typed.Retryable,
	}
}

func (p *Pipeline) transcribe(ctx context.Context, audio []byte, shouldCancel func() bool) (string, error) {
	res, err := guarded(ctx, "transcription", retry.TranscribeTimeout, shouldCancel,
		func(ctx context.Context) (*transcriber.Result, error) {
			return p.Transcriber.Transcribe(ctx, audio, p.Format, p.Lang)
		})
	if err != nil {
		return "", transcriber.Categorize(err)
	}
	return res.Text, nil
}

// deliver writes text to the clipboard and simulates a paste. A write
// failure is fatal; a paste failure is partial success because the text
// is already safely in the clipboard.
func (p *Pipeline) deliver(ctx context.Context, text string, shouldCancel func() bool) Result {
	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	if err := p.Ops.WriteClipboard(text); err != nil {
		return fail(errs.ClipboardWriteFailure(err))
	}

	if p.NoPaste.Load() {
		return Result{OK: true, Text: text}
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	_, err := retry.WithTimeout(ctx, "paste", retry.ClipboardTimeout,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.Ops.SimulatePaste()
		})
	if err != nil {
		pasteErr := errs.PasteFailure(err)
		log.Warnf("auto-paste failed, text left in clipboard: %v", err)
		return Result{
			OK:       true,
			Warning:  pasteErr.UserMessage,
			Category: errs.Clipboard,
		}
	}

	return Result{OK: true, Text: text}
}

// Dictation transcribes one utterance, cleans it, and delivers the
// result to the focused application.
func (p *Pipeline) Dictation(ctx context.Context, audio []byte, shouldCancel func() bool) Result {
	start := time.Now()
	r := p.runDictation(ctx, audio, shouldCancel)
	log.PipelineResult("dictation", r.OK, r.Cancelled, string(r.Category), r.Warning, float64(time.Since(start).Milliseconds()))
	return r
}

func (p *Pipeline) runDictation(ctx context.Context, audio []byte, shouldCancel func() bool) Result {
	if p.APIKey == "" {
		return fail(errs.MissingAPIKey())
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	raw, err := p.transcribe(ctx, audio, shouldCancel)
	if err != nil {
		return fail(err)
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	cleaned, err := guarded(ctx, "text cleaning", retry.CleanTimeout, shouldCancel,
		func(ctx context.Context) (string, error) {
			return p.Cleaner.Clean(ctx, raw, p.Lang)
		})
	if err != nil {
		return fail(err)
	}

	return p.deliver(ctx, cleaned, shouldCancel)
}

// Edit transcribes one utterance as an instruction and applies it to
// the pending base text (pre-captured) or to the currently selected
// text in the focused application.
func (p *Pipeline) Edit(ctx context.Context, audio []byte, pendingBase string, shouldCancel func() bool) Result {
	start := time.Now()
	r := p.runEdit(ctx, audio, pendingBase, shouldCancel)
	log.PipelineResult("edit", r.OK, r.Cancelled, string(r.Category), r.Warning, float64(time.Since(start).Milliseconds()))
	return r
}

func (p *Pipeline) runEdit(ctx context.Context, audio []byte, pendingBase string, shouldCancel func() bool) Result {
	if p.APIKey == "" {
		return fail(errs.MissingAPIKey())
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	base := pendingBase
	if base == "" {
		var err error
		base, err = p.CaptureSelection(ctx)
		if err != nil {
			return fail(err)
		}
	}
	if base == "" {
		return fail(errs.EditNoText())
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	instruction, err := p.transcribe(ctx, audio, shouldCancel)
	if err != nil {
		return fail(err)
	}
	instruction = trim(instruction)
	if instruction == "" {
		return fail(errs.EditEmptyInstruction())
	}

	if err := checkpoint(shouldCancel); err != nil {
		return fail(err)
	}
	edited, err := guarded(ctx, "text editing", retry.EditTimeout, shouldCancel,
		func(ctx context.Context) (string, error) {
			return p.Editor.Apply(ctx, instruction, base, p.Lang)
		})
	if err != nil {
		return fail(err)
	}
	if edited == "" {
		return fail(errs.EditEmptyResult())
	}

	return p.deliver(ctx, edited, shouldCancel)
}
