package textgen

import (
	"context"
	"sync"
)

// FakeGenerator returns a canned response and records the prompts it
// was called with.
type FakeGenerator struct {
	Response string
	Err      error

	mu      sync.Mutex
	Systems []string
	Users   []string
}

func (f *FakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.Systems = append(f.Systems, system)
	f.Users = append(f.Users, user)
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Users)
}
