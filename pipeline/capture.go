package pipeline

import (
	"context"
	"strings"
	"time"

	"dikto/errs"
	"dikto/log"
	"dikto/retry"
)

func trim(s string) string { return strings.TrimSpace(s) }

// CaptureSelection reads the text currently selected in the focused
// application: save the clipboard, clear it, send a copy keystroke,
// wait for the application to populate the clipboard, read it, and
// restore the saved contents no matter what happened in between.
// An empty selection is not an error here; callers decide.
func (p *Pipeline) CaptureSelection(ctx context.Context) (string, error) {
	prev, err := p.Ops.ReadClipboard()
	if err != nil {
		log.Warnf("clipboard read before capture failed: %v", err)
		prev = ""
	}
	defer func() {
		// Best effort: the user's clipboard must survive the capture.
		if err := p.Ops.WriteClipboard(prev); err != nil {
			log.Warnf("clipboard restore failed: %v", err)
		}
	}()

	if err := p.Ops.ClearClipboard(); err != nil {
		log.Warnf("clipboard clear before capture failed: %v", err)
	}

	_, err = retry.WithTimeout(ctx, "copy", retry.ClipboardTimeout,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.Ops.SimulateCopy()
		})
	if err != nil {
		return "", errs.CopyFailure(err)
	}

	// Give the target application time to answer the copy keystroke.
	time.Sleep(p.settle())

	text, err := p.Ops.ReadClipboard()
	if err != nil {
		return "", errs.CopyFailure(err)
	}
	return trim(text), nil
}
