// Package config loads and persists the application settings: API
// credential, endpoints, microphone device, language, and hotkey
// bindings. Precedence is defaults < config.toml < environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Settings struct {
	// APIKey authenticates both the speech-to-text and the
	// text-generation calls. GROQ_API_KEY is honored as a fallback.
	APIKey string `toml:"api_key" env:"DIKTO_API_KEY"`

	TranscribeURL   string `toml:"transcribe_url" env:"DIKTO_TRANSCRIBE_URL"`
	TranscribeModel string `toml:"transcribe_model" env:"DIKTO_TRANSCRIBE_MODEL"`
	GenerateBaseURL string `toml:"generate_base_url" env:"DIKTO_GENERATE_BASE_URL"`
	GenerateModel   string `toml:"generate_model" env:"DIKTO_GENERATE_MODEL"`

	Language  string `toml:"language" env:"DIKTO_LANG"` // "pt" or "en"
	Device    string `toml:"device" env:"DIKTO_DEVICE"` // capture device name, empty = system default
	Format    string `toml:"format" env:"DIKTO_FORMAT"` // "flac" or "wav"
	AutoPaste bool   `toml:"auto_paste" env:"DIKTO_AUTOPASTE"`

	DictationHotkey string `toml:"dictation_hotkey" env:"DIKTO_DICTATION_HOTKEY"`
	EditHotkey      string `toml:"edit_hotkey" env:"DIKTO_EDIT_HOTKEY"`

	path string `toml:"-" env:"-"`
}

func Defaults() Settings {
	return Settings{
		TranscribeURL:   "https://api.groq.com/openai/v1/audio/transcriptions",
		TranscribeModel: "whisper-large-v3-turbo",
		GenerateBaseURL: "https://api.groq.com/openai/v1",
		GenerateModel:   "llama-3.3-70b-versatile",
		Language:        "en",
		Format:          "flac",
		AutoPaste:       true,
		DictationHotkey: "ctrl+shift+space",
		EditHotkey:      "ctrl+shift+e",
	}
}

func DefaultPath() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "dikto", "config.toml"), nil
}

// Load reads path (or the default location when empty), overlays the
// environment, and validates. A missing file is not an error: first run
// starts from defaults.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return s, err
		}
	}
	s.path = path

	if _, err := toml.DecodeFile(path, &s); err != nil && !os.IsNotExist(err) {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}

	// .env in the working directory, if present
	godotenv.Load()

	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parsing environment: %w", err)
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("GROQ_API_KEY")
	}

	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	switch s.Language {
	case "pt", "en":
	default:
		return fmt.Errorf("unknown language %q (use pt or en)", s.Language)
	}
	switch s.Format {
	case "flac", "wav":
	default:
		return fmt.Errorf("unknown format %q (use flac or wav)", s.Format)
	}
	return nil
}

// Save writes the settings back to the file they were loaded from.
func (s *Settings) Save() error {
	if s.path == "" {
		return fmt.Errorf("no config path set")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}

func (s *Settings) Path() string { return s.path }

// HasAPIKey reports whether a credential is configured. Pipelines fail
// fast with a configuration error when it is absent.
func (s *Settings) HasAPIKey() bool { return s.APIKey != "" }
