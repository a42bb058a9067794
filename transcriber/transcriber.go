// Package transcriber sends one finished utterance to a speech-to-text
// service and returns the transcript.
package transcriber

import (
	"context"
	"net/http"
	"time"

	"dikto/errs"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

// Client turns an encoded audio buffer into text. Implementations make
// exactly one network call per Transcribe and validate input before
// touching the network: an empty buffer fails with an audio-category
// error and zero requests.
type Client interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, format, lang string) (*Result, error)
}

var _ Client = (*Whisper)(nil)

// NewWhisper builds a client for an OpenAI-compatible transcription
// endpoint (Groq, OpenAI).
func NewWhisper(apiURL, model, apiKey string) *Whisper {
	return &Whisper{
		client: NewTracedClient(apiURL),
		apiURL: apiURL,
		model:  model,
		apiKey: apiKey,
	}
}

// Categorize converts a terminal transcription failure into the typed
// error vocabulary, so callers only ever observe typed errors.
func Categorize(err error) error {
	if err == nil {
		return nil
	}
	if errs.IsCancelled(err) {
		return err
	}
	return errs.CategorizeAPI(err)
}
