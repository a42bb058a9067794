package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"dikto/audio"
	"dikto/clipboard"
	"dikto/config"
	"dikto/hotkey"
	"dikto/textgen"
	"dikto/transcriber"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(cfg *config.Settings) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("dikto doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	if !checkConfig(cfg) {
		allPass = false
	}
	if !checkHotkey(cfg) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(cfg) {
		allPass = false
	}
	if allPass && !checkTextGeneration(cfg) {
		allPass = false
	}
	if allPass && !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(cfg *config.Settings) bool {
	fmt.Println()
	fmt.Println("[1/5] Configuration")

	if !cfg.HasAPIKey() {
		fmt.Println("  FAIL: no API key (set DIKTO_API_KEY or api_key in config.toml)")
		return false
	}
	fmt.Printf("  PASS: API key present, language=%s format=%s\n", cfg.Language, cfg.Format)
	return true
}

func checkHotkey(cfg *config.Settings) bool {
	fmt.Println()
	fmt.Println("[2/5] Hotkey detection")

	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else {
		fmt.Printf("  %s\n", msg)
	}

	hk, err := hotkey.New(hotkey.Binding{Name: "dictation", Combo: cfg.DictationHotkey})
	if err != nil {
		fmt.Printf("  FAIL: bad hotkey %q: %v\n", cfg.DictationHotkey, err)
		return false
	}
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	fmt.Printf("Press %s...\n", cfg.DictationHotkey)
	select {
	case <-hk.Pressed():
		fmt.Println("  PASS: hotkey detected")
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndTranscription(cfg *config.Settings) bool {
	fmt.Println()
	fmt.Println("[3/5] Microphone and transcription")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	device, ok := pickDevice(ctx, reader)
	if !ok {
		return false
	}

	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: 16000,
		Channels:   1,
	})
	if err != nil {
		fmt.Printf("  FAIL: capture init: %v\n", err)
		return false
	}
	defer capture.Close()

	rec := &audio.Recorder{Capture: capture, Format: cfg.Format}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	if err := rec.Start(); err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	fmt.Print("  Recording")
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" done")

	audioData, err := rec.Stop()
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(audioData) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	fmt.Printf("  Recorded %.1f KB, transcribing...\n", float64(len(audioData))/1024)

	whisper := transcriber.NewWhisper(cfg.TranscribeURL, cfg.TranscribeModel, cfg.APIKey)
	result, err := whisper.Transcribe(context.Background(), audioData, cfg.Format, cfg.Language)
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func pickDevice(ctx audio.Context, reader *bufio.Reader) (*audio.DeviceInfo, bool) {
	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil, false
	}
	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return &devices[0], true
	}

	fmt.Println()
	fmt.Println("Select input device:")
	for i, d := range devices {
		fmt.Printf("  %d. %s\n", i+1, d.Name)
	}
	fmt.Printf("Choice [1-%d]: ", len(devices))

	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		fmt.Println("  FAIL: invalid choice")
		return nil, false
	}
	fmt.Printf("Selected: %s\n", devices[idx].Name)
	return &devices[idx], true
}

func checkTextGeneration(cfg *config.Settings) bool {
	fmt.Println()
	fmt.Println("[4/5] Text generation")

	gen := textgen.NewOpenAI(cfg.GenerateBaseURL, cfg.APIKey, cfg.GenerateModel)
	cleaner := textgen.NewCleaner(gen)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out, err := cleaner.Clean(ctx, "hello, um, hello world", cfg.Language)
	if err != nil {
		fmt.Printf("  FAIL: generation error: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: model responded (%q)\n", out)
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[5/5] Clipboard and paste")

	if err := clipboard.Init(); err != nil {
		fmt.Printf("  Warning: paste init: %v\n", err)
	}

	testStr := fmt.Sprintf("dikto-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Write(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung?)")
		return false
	}
	fmt.Println("  PASS: clipboard write/read verified")

	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  FAIL: paste injection: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}
