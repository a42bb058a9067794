package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dikto/errs"
	"dikto/textgen"
	"dikto/transcriber"
)

// fakeOps is an in-memory clipboard plus scripted keystroke outcomes.
type fakeOps struct {
	clip     string
	pastes   int
	copies   int
	writes   []string
	pasteErr error
	copyErr  error
	writeErr error

	// onCopy simulates the focused application answering the copy
	// keystroke by populating the clipboard.
	onCopy func(f *fakeOps)
}

func (f *fakeOps) ReadClipboard() (string, error) { return f.clip, nil }

func (f *fakeOps) WriteClipboard(text string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.clip = text
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeOps) ClearClipboard() error {
	f.clip = ""
	return nil
}

func (f *fakeOps) SimulateCopy() error {
	f.copies++
	if f.copyErr != nil {
		return f.copyErr
	}
	if f.onCopy != nil {
		f.onCopy(f)
	}
	return nil
}

func (f *fakeOps) SimulatePaste() error {
	f.pastes++
	return f.pasteErr
}

func newPipeline(t *transcriber.Fake, cleanResp, editResp string, ops *fakeOps) *Pipeline {
	return &Pipeline{
		Transcriber: t,
		Cleaner:     textgen.NewCleaner(&textgen.FakeGenerator{Response: cleanResp}),
		Editor:      textgen.NewEditor(&textgen.FakeGenerator{Response: editResp}),
		Ops:         ops,
		APIKey:      "key",
		Format:      "flac",
		Lang:        "pt",
		SettleDelay: time.Millisecond,
	}
}

var audio = []byte{1, 2, 3}

func TestDictationHappyPath(t *testing.T) {
	ops := &fakeOps{}
	tr := transcriber.NewFake("Olá, é, tudo bem?", nil)
	p := newPipeline(tr, "Olá, tudo bem?", "", ops)

	r := p.Dictation(context.Background(), audio, nil)

	if !r.OK || r.Cancelled || r.Warning != "" {
		t.Fatalf("result = %+v, want clean success", r)
	}
	if r.Text != "Olá, tudo bem?" {
		t.Errorf("Text = %q", r.Text)
	}
	if ops.clip != "Olá, tudo bem?" {
		t.Errorf("clipboard = %q, want cleaned text", ops.clip)
	}
	if ops.pastes != 1 {
		t.Errorf("pastes = %d, want 1", ops.pastes)
	}
}

func TestDictationPasteFailureIsPartialSuccess(t *testing.T) {
	ops := &fakeOps{pasteErr: errors.New("xdotool exit 1")}
	tr := transcriber.NewFake("raw", nil)
	p := newPipeline(tr, "cleaned", "", ops)

	r := p.Dictation(context.Background(), audio, nil)

	if !r.OK {
		t.Fatalf("paste failure must be partial success, got %+v", r)
	}
	if r.Warning == "" {
		t.Error("warning should be set")
	}
	if r.Category != errs.Clipboard {
		t.Errorf("category = %s, want %s", r.Category, errs.Clipboard)
	}
	if ops.clip != "cleaned" {
		t.Errorf("clipboard = %q, text must survive paste failure", ops.clip)
	}
}

func TestDictationClipboardWriteFailureIsHard(t *testing.T) {
	tr := transcriber.NewFake("x", nil)
	ops := &fakeOps{writeErr: errors.New("no clipboard owner")}
	p := newPipeline(tr, "cleaned", "", ops)

	r := p.Dictation(context.Background(), audio, nil)

	if r.OK || r.Category != errs.Clipboard {
		t.Fatalf("result = %+v, want clipboard failure", r)
	}
	if ops.pastes != 0 {
		t.Errorf("pastes = %d, nothing to paste when the write failed", ops.pastes)
	}
	// The user sees a write failure, not the edit-mode copy message.
	if strings.Contains(r.Err, "copy") {
		t.Errorf("user message %q reads like a selection-copy failure", r.Err)
	}
}

func TestDictationMissingAPIKey(t *testing.T) {
	tr := transcriber.NewFake("x", nil)
	p := newPipeline(tr, "x", "", &fakeOps{})
	p.APIKey = ""

	r := p.Dictation(context.Background(), audio, nil)

	if r.OK || r.Category != errs.Configuration {
		t.Fatalf("result = %+v, want configuration failure", r)
	}
	if tr.Calls() != 0 {
		t.Errorf("transcriber called %d times before key check", tr.Calls())
	}
}

func TestDictationEmptyAudio(t *testing.T) {
	tr := transcriber.NewFake("x", nil)
	p := newPipeline(tr, "x", "", &fakeOps{})

	r := p.Dictation(context.Background(), nil, nil)

	if r.OK || r.Category != errs.Audio {
		t.Fatalf("result = %+v, want audio failure", r)
	}
	if tr.Calls() != 0 {
		t.Errorf("network calls = %d, want 0", tr.Calls())
	}
}

func TestDictationTranscriptionFailureIsHard(t *testing.T) {
	tr := transcriber.NewFake("", &errs.APIError{Status: 401, Body: "bad key"})
	ops := &fakeOps{}
	p := newPipeline(tr, "x", "", ops)

	r := p.Dictation(context.Background(), audio, nil)

	if r.OK {
		t.Fatal("expected hard failure")
	}
	if r.Category != errs.APIAuth {
		t.Errorf("category = %s, want %s", r.Category, errs.APIAuth)
	}
	if r.CanRetry {
		t.Error("auth failures are not retryable")
	}
	if len(ops.writes) != 0 {
		t.Error("nothing should reach the clipboard on early failure")
	}
}

func TestDictationCancelledBetweenStages(t *testing.T) {
	tr := transcriber.NewFake("raw", nil)
	cleanGen := &textgen.FakeGenerator{Response: "cleaned"}
	ops := &fakeOps{}
	p := &Pipeline{
		Transcriber: tr,
		Cleaner:     textgen.NewCleaner(cleanGen),
		Editor:      textgen.NewEditor(&textgen.FakeGenerator{}),
		Ops:         ops,
		APIKey:      "key",
		Format:      "flac",
		Lang:        "en",
	}

	// Cancel takes effect once the transcription stage has run.
	shouldCancel := func() bool { return tr.Calls() > 0 }

	r := p.Dictation(context.Background(), audio, shouldCancel)

	if !r.Cancelled {
		t.Fatalf("result = %+v, want cancelled", r)
	}
	if r.Err != "" {
		t.Error("cancellation must not carry an error message")
	}
	if cleanGen.Calls() != 0 {
		t.Error("cleaning stage ran after cancellation")
	}
	if len(ops.writes) != 0 || ops.pastes != 0 {
		t.Error("no side effects after cancellation")
	}
}

func TestEditWithPendingBaseSkipsCapture(t *testing.T) {
	tr := transcriber.NewFake("make it formal", nil)
	ops := &fakeOps{}
	p := newPipeline(tr, "", "Dear Sir or Madam", ops)

	r := p.Edit(context.Background(), audio, "hey there", nil)

	if !r.OK {
		t.Fatalf("result = %+v", r)
	}
	if ops.copies != 0 {
		t.Errorf("capture ran despite pending base text (%d copies)", ops.copies)
	}
	if ops.clip != "Dear Sir or Madam" {
		t.Errorf("clipboard = %q", ops.clip)
	}
	if ops.pastes != 1 {
		t.Errorf("pastes = %d, want 1", ops.pastes)
	}
}

func TestEditEmptySelectionIsFatal(t *testing.T) {
	tr := transcriber.NewFake("instruction", nil)
	// Copy succeeds but the application puts nothing in the clipboard.
	ops := &fakeOps{clip: "previous clipboard"}
	p := newPipeline(tr, "", "x", ops)

	r := p.Edit(context.Background(), audio, "", nil)

	if r.OK || r.Category != errs.EditMode {
		t.Fatalf("result = %+v, want edit-mode failure", r)
	}
	if tr.Calls() != 0 {
		t.Errorf("transcription ran with no text to edit (%d calls)", tr.Calls())
	}
	if ops.clip != "previous clipboard" {
		t.Errorf("clipboard = %q, want restored", ops.clip)
	}
}

func TestEditCopyFailureIsDistinctAndFatal(t *testing.T) {
	tr := transcriber.NewFake("instruction", nil)
	ops := &fakeOps{clip: "previous", copyErr: errors.New("no injector")}
	p := newPipeline(tr, "", "x", ops)

	r := p.Edit(context.Background(), audio, "", nil)

	if r.OK || r.Category != errs.Clipboard {
		t.Fatalf("result = %+v, want clipboard failure", r)
	}
	if ops.clip != "previous" {
		t.Errorf("clipboard = %q, want restored even after copy failure", ops.clip)
	}
}

func TestEditCaptureRestoresClipboard(t *testing.T) {
	tr := transcriber.NewFake("swap greeting", nil)
	ops := &fakeOps{
		clip:   "user's precious clipboard",
		onCopy: func(f *fakeOps) { f.clip = "selected text" },
	}
	p := newPipeline(tr, "", "edited text", ops)

	r := p.Edit(context.Background(), audio, "", nil)

	if !r.OK {
		t.Fatalf("result = %+v", r)
	}
	// The capture restored the original clipboard before the pipeline
	// wrote the final result.
	if len(ops.writes) < 2 || ops.writes[0] != "user's precious clipboard" {
		t.Errorf("writes = %v, want restore first", ops.writes)
	}
	if ops.clip != "edited text" {
		t.Errorf("clipboard = %q, want final result", ops.clip)
	}
}

func TestEditEmptyInstruction(t *testing.T) {
	tr := transcriber.NewFake("   ", nil)
	p := newPipeline(tr, "", "x", &fakeOps{})

	r := p.Edit(context.Background(), audio, "base", nil)

	if r.OK || r.Category != errs.EditMode {
		t.Fatalf("result = %+v, want edit-mode failure", r)
	}
}

func TestEditEmptyResult(t *testing.T) {
	tr := transcriber.NewFake("delete everything", nil)
	p := newPipeline(tr, "", "", &fakeOps{})

	r := p.Edit(context.Background(), audio, "base", nil)

	if r.OK || r.Category != errs.EditMode {
		t.Fatalf("result = %+v, want edit-mode failure", r)
	}
	if r.Cancelled {
		t.Error("not a cancellation")
	}
}

func TestEditPasteFailureIsPartialSuccess(t *testing.T) {
	tr := transcriber.NewFake("fix typos", nil)
	ops := &fakeOps{pasteErr: errors.New("exit 1")}
	p := newPipeline(tr, "", "fixed", ops)

	r := p.Edit(context.Background(), audio, "base", nil)

	if !r.OK || r.Warning == "" || r.Category != errs.Clipboard {
		t.Fatalf("result = %+v, want partial success", r)
	}
	if ops.clip != "fixed" {
		t.Errorf("clipboard = %q", ops.clip)
	}
}
