package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"dikto/errs"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = orig })
	return &slept
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	noSleep(t)
	calls := 0
	v, err := Do(func() (string, error) {
		calls++
		return "ok", nil
	}, Config{})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != "ok" || calls != 1 {
		t.Errorf("v=%q calls=%d, want ok/1", v, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	noSleep(t)
	calls := 0
	lastErr := errors.New("attempt 5")
	_, err := Do(func() (int, error) {
		calls++
		if calls == 5 {
			return 0, lastErr
		}
		return 0, errors.New("transient")
	}, Config{MaxAttempts: 5})
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if err != lastErr {
		t.Errorf("err = %v, want the final attempt's error unwrapped", err)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	noSleep(t)
	calls := 0
	authErr := errs.AuthError(nil)
	_, err := Do(func() (int, error) {
		calls++
		return 0, authErr
	}, Config{MaxAttempts: 10})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err != error(authErr) {
		t.Errorf("err = %v, want the auth error", err)
	}
}

func TestDoBackoffSequence(t *testing.T) {
	slept := noSleep(t)
	calls := 0
	var delays []time.Duration
	Do(func() (int, error) {
		calls++
		return 0, errors.New("always")
	}, Config{
		MaxAttempts:  7,
		InitialDelay: 1000 * time.Millisecond,
		MaxDelay:     10000 * time.Millisecond,
		Multiplier:   2,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("got %d retries, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %s, want %s", i, delays[i], want[i])
		}
		if (*slept)[i] != want[i] {
			t.Errorf("slept[%d] = %s, want %s", i, (*slept)[i], want[i])
		}
	}
}

func TestDoCancelledBetweenAttempts(t *testing.T) {
	noSleep(t)
	calls := 0
	cancelled := false
	_, err := Do(func() (int, error) {
		calls++
		cancelled = true
		return 0, errors.New("transient")
	}, Config{
		MaxAttempts: 3,
		IsCancelled: func() bool { return cancelled },
		OnRetry:     func(int, error, time.Duration) {},
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second attempt must not run)", calls)
	}
	if !errs.IsCancelled(err) {
		t.Errorf("err = %v, want cancellation", err)
	}
}

func TestDoCancelledBeforeFirstAttempt(t *testing.T) {
	noSleep(t)
	calls := 0
	_, err := Do(func() (int, error) {
		calls++
		return 0, nil
	}, Config{IsCancelled: func() bool { return true }})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if !errs.IsCancelled(err) {
		t.Errorf("err = %v, want cancellation", err)
	}
}

func TestDelayCap(t *testing.T) {
	cfg := Config{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}.withDefaults()
	// Large attempt numbers must not overflow past the cap.
	if d := cfg.Delay(40); d != 10*time.Second {
		t.Errorf("Delay(40) = %s, want cap", d)
	}
}

func TestWithTimeoutFastOperation(t *testing.T) {
	v, err := WithTimeout(context.Background(), "fast", time.Second, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("WithTimeout: %v", err)
	}
	if v != "done" {
		t.Errorf("v = %q", v)
	}
}

func TestWithTimeoutExpires(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, err := WithTimeout(context.Background(), "slow-op", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return 42, nil
	})

	var typed *errs.Error
	if !errors.As(err, &typed) {
		t.Fatalf("err = %v, want typed timeout", err)
	}
	if typed.Category != errs.Timeout {
		t.Errorf("category = %s, want %s", typed.Category, errs.Timeout)
	}
	if typed.Message != "slow-op timed out after 20ms" {
		t.Errorf("message = %q", typed.Message)
	}
}

func TestWithTimeoutPropagatesOperationError(t *testing.T) {
	opErr := errors.New("op failed")
	_, err := WithTimeout(context.Background(), "x", time.Second, func(ctx context.Context) (int, error) {
		return 0, opErr
	})
	if err != opErr {
		t.Errorf("err = %v, want operation error unchanged", err)
	}
}

func TestWithTimeoutCancelsOpContext(t *testing.T) {
	ctxSeen := make(chan context.Context, 1)
	WithTimeout(context.Background(), "x", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		ctxSeen <- ctx
		<-ctx.Done()
		return 0, ctx.Err()
	})
	ctx := <-ctxSeen
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("op context not cancelled after deadline")
	}
}
