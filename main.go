package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"dikto/audio"
	"dikto/beep"
	"dikto/clipboard"
	"dikto/config"
	"dikto/doctor"
	"dikto/errs"
	"dikto/hotkey"
	"dikto/log"
	"dikto/pipeline"
	"dikto/session"
	"dikto/shutdown"
	"dikto/textgen"
	"dikto/transcriber"
	"dikto/tray"
)

var version = "dev"

// Shown in the TUI help line; set from config before the TUI starts.
var dictationComboHelp string
var editComboHelp string

var utteranceCount atomic.Int64

var lastTextMu sync.Mutex
var lastText string

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if n := utteranceCount.Load(); n > 0 {
			log.SessionEnd(int(n))
		}
		log.Close()
		tray.Quit()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func modeLineText(cfg *config.Settings) string {
	return fmt.Sprintf("[%s | %s (%s)]", cfg.Format, cfg.TranscribeModel, cfg.Language)
}

// pcmLevel computes RMS over one 16-bit PCM chunk, normalized to 0..1.
func pcmLevel(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

func run() {
	autoPasteFlag := flag.Bool("autopaste", true, "Auto-paste into the focused window after processing")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively and save it")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	formatFlag := flag.String("format", "", "Audio upload format: flac or wav")
	langFlag := flag.String("lang", "", "Language: en or pt")
	configFlag := flag.String("config", "", "Config file path (default: XDG config dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Headless mode: dictate one WAV file and print the result")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	nobeepFlag := flag.Bool("nobeep", false, "Disable audio feedback tones")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("dikto %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Explicit flags win over config file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lang":
			cfg.Language = *langFlag
		case "device":
			cfg.Device = *deviceFlag
		case "format":
			cfg.Format = *formatFlag
		case "autopaste":
			cfg.AutoPaste = *autoPasteFlag
		}
	})
	switch cfg.Format {
	case "flac", "wav":
	default:
		fmt.Printf("Error: unknown format %q (use flac or wav)\n", cfg.Format)
		os.Exit(1)
	}
	switch cfg.Language {
	case "en", "pt":
	default:
		fmt.Printf("Error: unknown language %q (use en or pt)\n", cfg.Language)
		os.Exit(1)
	}
	errs.SetLanguage(cfg.Language)

	if *doctorFlag {
		os.Exit(doctor.Run(&cfg))
	}

	if *nobeepFlag {
		beep.Disable()
	}

	// Resolve -setup into the config early (before daemonization)
	if *setupFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx)
		actx.Close()
		if err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
		} else {
			cfg.Device = ""
			if dev != nil {
				cfg.Device = dev.Name
			}
			if err := cfg.Save(); err != nil {
				fmt.Printf("Warning: could not save config: %v\n", err)
			}
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_DIKTO_BG") == "" {
		args := os.Args[1:]
		if cfg.Device != "" && *deviceFlag == "" {
			args = append(args, "-device", cfg.Device)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_DIKTO_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	} else {
		log.SessionStart(cfg.TranscribeModel, cfg.Format, cfg.Language)
	}

	whisper := transcriber.NewWhisper(cfg.TranscribeURL, cfg.TranscribeModel, cfg.APIKey)
	whisper.Warm()
	gen := textgen.NewOpenAI(cfg.GenerateBaseURL, cfg.APIKey, cfg.GenerateModel)

	pipe := &pipeline.Pipeline{
		Transcriber: whisper,
		Cleaner:     textgen.NewCleaner(gen),
		Editor:      textgen.NewEditor(gen),
		Ops:         pipeline.SystemOps{},
		APIKey:      cfg.APIKey,
		Format:      cfg.Format,
		Lang:        cfg.Language,
	}
	pipe.NoPaste.Store(!cfg.AutoPaste)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: dikto -test <wav-file>")
			os.Exit(1)
		}
		os.Exit(runTestMode(args[0], &cfg, pipe))
	}

	if cfg.AutoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	selectedDevice, err := resolveDevice(actx, cfg.Device)
	if err != nil {
		log.Errorf("device resolution error: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	captureDevice, err := openCapture(actx, selectedDevice)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	vp, err := newVADProcessor()
	if err != nil {
		log.Warnf("voice detection unavailable: %v", err)
		vp = nil
	}

	recorder := &audio.Recorder{
		Capture: captureDevice,
		Format:  cfg.Format,
		OnChunk: func(pcm []byte) {
			tuiSend(AudioLevelMsg{Level: pcmLevel(pcm)})
			if vp != nil {
				vp.Process(pcm)
			}
		},
	}

	dictationComboHelp = cfg.DictationHotkey
	editComboHelp = cfg.EditHotkey

	// Start TUI
	if !*tuiFlag {
		markTUIReady()
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	var monitorMu sync.Mutex
	var monitorStop chan struct{}

	var ctrl *session.Controller

	stopMonitor := func() {
		monitorMu.Lock()
		if monitorStop != nil {
			close(monitorStop)
			monitorStop = nil
		}
		monitorMu.Unlock()
	}

	// startMonitor drives the per-recording ticker: TUI timer, silence
	// warnings, and the 30s auto-close.
	startMonitor := func() {
		if vp != nil {
			vp.Reset()
		}
		done := make(chan struct{})
		monitorMu.Lock()
		monitorStop = done
		monitorMu.Unlock()

		mon := newSilenceMonitor()
		start := time.Now()
		go func() {
			ticker := time.NewTicker(tickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					tuiSend(RecordingTickMsg{Duration: time.Since(start).Seconds()})
					if vp == nil {
						continue
					}
					switch mon.Tick(vp.HasSpeechTick()) {
					case SilenceWarn:
						log.Info("no_voice_warning")
						tuiSend(NoVoiceWarningMsg{})
						go beep.PlayWarn()
					case SilenceWarnClear:
						tuiSend(VoiceClearedMsg{})
					case SilenceRepeat:
						log.Info("silence_during_warning")
						tuiSend(NoVoiceWarningMsg{})
						go beep.PlayWarn()
					case SilenceAutoClose:
						log.Info("silence_auto_close")
						tuiSend(SilenceAutoCloseMsg{})
						ctrl.Cancel()
						return
					}
				}
			}
		}()
	}

	var procStart atomic.Int64 // unix ms, set on recording->processing

	ctrl = &session.Controller{
		Recorder: recorder,
		Runner:   pipe,
		OnState: func(s session.State, m session.Mode) {
			switch s {
			case session.Recording:
				tray.SetRecording(true)
				tuiSend(RecordingStartMsg{Mode: string(m)})
				go beep.PlayStart()
				startMonitor()
			case session.Processing:
				stopMonitor()
				procStart.Store(time.Now().UnixMilli())
				tray.SetRecording(false)
				tray.SetProcessing(true)
				tuiSend(ProcessingMsg{Mode: string(m)})
				go beep.PlayEnd()
			case session.Idle:
				stopMonitor()
				tray.SetRecording(false)
				tray.SetProcessing(false)
				tuiSend(RecordingStopMsg{})
			}
		},
		OnResult: func(r pipeline.Result, m session.Mode) {
			totalMs := float64(time.Now().UnixMilli() - procStart.Load())
			tray.SetProcessing(false)
			if r.OK && r.Text != "" {
				lastTextMu.Lock()
				lastText = r.Text
				lastTextMu.Unlock()
				log.TranscriptionText(r.Text)
			}
			switch {
			case r.Cancelled:
			case r.OK && r.Warning != "":
				go beep.PlayWarn()
				tray.SetError(r.Warning)
				utteranceCount.Add(1)
			case r.OK:
				utteranceCount.Add(1)
				tray.SetLastResult(time.Duration(totalMs)*time.Millisecond, totalMs)
			default:
				go beep.PlayError()
				tray.SetError(r.Err)
			}
			tuiSend(ResultMsg{
				Mode:      string(m),
				Text:      r.Text,
				Warning:   r.Warning,
				Err:       r.Err,
				Sticky:    r.Category == errs.APIAuth || r.Category == errs.Configuration,
				Cancelled: r.Cancelled,
				TotalMs:   totalMs,
			})
		},
	}

	tray.OnDictate(func() { ctrl.Toggle(session.ModeDictation) })
	tray.OnEdit(func() { ctrl.Toggle(session.ModeEdit) })
	tray.OnCancel(func() { ctrl.Cancel() })
	tray.OnCopyLast(func() {
		lastTextMu.Lock()
		text := lastText
		lastTextMu.Unlock()
		if text != "" {
			if err := clipboard.Write(text); err != nil {
				log.Warnf("copy last result: %v", err)
			}
		}
	})
	tray.SetAutoPaste(cfg.AutoPaste)
	tray.OnAutoPaste(func(on bool) {
		pipe.NoPaste.Store(!on)
		if on {
			if err := clipboard.Init(); err != nil {
				log.Warnf("paste init failed: %v", err)
			}
		}
	})
	tray.SetLanguage(cfg.Language, func(code string) {
		cfg.Language = code
		errs.SetLanguage(code)
		pipe.Lang = code
		tuiSend(ModeLineMsg{Text: modeLineText(&cfg)})
	})
	trayQuit := tray.Init()

	// Poll for device changes (hotplug). Only acts while idle: a
	// vanished device falls back to the default, the preferred device
	// reconnects when it reappears.
	preferredDevice := ""
	if selectedDevice != nil {
		preferredDevice = selectedDevice.Name
	}
	go func() {
		var last []string
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			devices, err := actx.Devices()
			if err != nil {
				continue
			}
			names := make([]string, len(devices))
			for i := range devices {
				names[i] = devices[i].Name
			}
			if slices.Equal(last, names) {
				continue
			}
			last = names
			if ctrl.State() != session.Idle {
				continue
			}
			current := recorder.Capture.DeviceName()
			if preferredDevice != "" && current != preferredDevice && slices.Contains(names, preferredDevice) {
				log.Info("device_reconnected: " + preferredDevice)
				swapCapture(actx, recorder, preferredDevice)
			} else if selectedDevice != nil && !slices.Contains(names, selectedDevice.Name) {
				log.Info("device_disconnected: " + selectedDevice.Name)
				selectedDevice = nil
				swapCapture(actx, recorder, "")
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown()
	}()

	bindings := []hotkey.Binding{
		{Name: "dictate", Combo: cfg.DictationHotkey},
		{Name: "edit", Combo: cfg.EditHotkey},
	}
	hk, err := hotkey.New(bindings...)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkeys: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	tuiSend(ModeLineMsg{Text: modeLineText(&cfg)})
	tuiSend(DeviceLineMsg{Text: deviceLine(captureDevice)})

	for name := range hk.Pressed() {
		switch name {
		case "dictate":
			log.Info("hotkey_dictate")
			ctrl.Toggle(session.ModeDictation)
		case "edit":
			log.Info("hotkey_edit")
			ctrl.Toggle(session.ModeEdit)
		}
	}
}

// swapCapture replaces the recorder's capture device. Caller must
// ensure no recording is in progress.
func swapCapture(actx audio.Context, rec *audio.Recorder, name string) {
	dev, err := resolveDevice(actx, name)
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return
	}
	newCapture, err := openCapture(actx, dev)
	if err != nil {
		log.Errorf("capture device reinit error: %v", err)
		return
	}
	rec.Capture.Close()
	rec.Capture = newCapture
	tuiSend(DeviceLineMsg{Text: deviceLine(newCapture)})
}

// runTestMode replays a WAV file through the whole dictation path
// without touching the real microphone, hotkeys, or clipboard paste.
func runTestMode(wavPath string, cfg *config.Settings, pipe *pipeline.Pipeline) int {
	pipe.NoPaste.Store(true)

	actx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	capture, err := actx.NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fake := capture.(*audio.FakeCapture)

	rec := &audio.Recorder{Capture: capture, Format: cfg.Format}
	if err := rec.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: recording: %v\n", err)
		return 1
	}
	<-fake.AudioDone()
	audioData, err := rec.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: recording: %v\n", err)
		return 1
	}
	if len(audioData) == 0 {
		fmt.Fprintln(os.Stderr, "Error: recording too short")
		return 1
	}

	r := pipe.Dictation(context.Background(), audioData, func() bool { return false })
	if !r.OK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", r.Err)
		return 1
	}
	fmt.Println(r.Text)
	return 0
}

func main() {
	run()
}
