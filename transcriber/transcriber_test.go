package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dikto/errs"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	w := NewWhisper(srv.URL, "whisper-large-v3-turbo", "key")
	_, err := w.Transcribe(context.Background(), nil, "flac", "en")

	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Category != errs.Audio {
		t.Fatalf("err = %v, want audio-category error", err)
	}
	if requests != 0 {
		t.Errorf("made %d network calls, want 0", requests)
	}
}

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3-turbo" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "pt" {
			t.Errorf("language = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth = %q", got)
		}
		w.Header().Set("x-ratelimit-remaining-requests", "45")
		w.Header().Set("x-ratelimit-limit-requests", "50")
		w.Write([]byte(`{"text":"olá mundo","duration":1.5,"segments":[{"text":"olá mundo","no_speech_prob":0.01,"avg_logprob":-0.2}]}`))
	}))
	defer srv.Close()

	w := NewWhisper(srv.URL, "whisper-large-v3-turbo", "key")
	res, err := w.Transcribe(context.Background(), []byte{1, 2, 3}, "flac", "pt")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "olá mundo" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.RateLimit != "45/50" {
		t.Errorf("RateLimit = %q", res.RateLimit)
	}
	if len(res.Segments) != 1 {
		t.Errorf("Segments = %d", len(res.Segments))
	}
	if res.Metrics == nil {
		t.Error("Metrics should be populated")
	}
}

func TestTranscribeAPIError(t *testing.T) {
	tests := []struct {
		status   int
		category errs.Category
	}{
		{401, errs.APIAuth},
		{429, errs.APIRateLimit},
		{422, errs.APIValidation},
		{500, errs.Network},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("nope"))
		}))

		w := NewWhisper(srv.URL, "m", "key")
		_, err := w.Transcribe(context.Background(), []byte{1}, "flac", "en")
		srv.Close()

		var apiErr *errs.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: err = %v, want APIError", tt.status, err)
		}
		if apiErr.Status != tt.status {
			t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
		}

		typed := errs.CategorizeAPI(err)
		if typed.Category != tt.category {
			t.Errorf("status %d: category = %s, want %s", tt.status, typed.Category, tt.category)
		}
	}
}

func TestCategorizePassesThroughCancellation(t *testing.T) {
	c := errs.NewCancelled()
	if got := Categorize(c); got != error(c) {
		t.Errorf("Categorize(cancelled) = %v, want unchanged", got)
	}
	if Categorize(nil) != nil {
		t.Error("Categorize(nil) should be nil")
	}
}

func TestFakeCountsOnlyNetworkCalls(t *testing.T) {
	f := NewFake("hi", nil)
	f.Transcribe(context.Background(), nil, "flac", "en")
	if f.Calls() != 0 {
		t.Errorf("empty audio should not count as a call, got %d", f.Calls())
	}
	f.Transcribe(context.Background(), []byte{1}, "flac", "en")
	if f.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", f.Calls())
	}
}
