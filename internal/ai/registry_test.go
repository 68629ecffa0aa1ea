// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
)

// mockBackend is a test double implementing Backend and Embedder.
// It records calls and returns configurable responses.
type mockBackend struct {
	name      string
	response  string
	err       error
	vector    []float32
	json      bool
	callCount int
	lastReq   Request
	mu        sync.Mutex
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) EnforcesJSON() bool { return m.json }

func (m *mockBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &Response{Text: m.response, Model: "mock-1"}, nil
}

func (m *mockBackend) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return &EmbedResponse{Embedding: m.vector, Model: req.Model}, nil
}

// chatOnly implements Backend without embeddings or JSON mode.
type chatOnly struct{}

func (chatOnly) Name() string { return "chat-only" }
func (chatOnly) Complete(ctx context.Context, req Request) (*Response, error) {
	return &Response{Text: "ok"}, nil
}

func newTestRegistry(backends map[string]Backend) *Registry {
	r := NewRegistry(nil)
	for name, b := range backends {
		r.Register(name, b)
	}
	return r
}

func TestRegistryComplete(t *testing.T) {
	t.Run("delegates to named backend", func(t *testing.T) {
		mock := &mockBackend{name: "test", response: "Hello from mock"}
		reg := newTestRegistry(map[string]Backend{"test": mock})

		resp, err := reg.Complete(context.Background(), "test", Request{System: "system"})
		if err != nil {
			t.Fatalf("Complete: unexpected error: %v", err)
		}
		if resp.Text != "Hello from mock" {
			t.Errorf("Text: got %q, want %q", resp.Text, "Hello from mock")
		}
		if resp.Backend != "test" {
			t.Errorf("Backend: got %q, want %q", resp.Backend, "test")
		}
		if mock.callCount != 1 {
			t.Errorf("callCount: got %d, want 1", mock.callCount)
		}
		if mock.lastReq.System != "system" {
			t.Errorf("System: got %q, want %q", mock.lastReq.System, "system")
		}
	})

	t.Run("wraps backend error", func(t *testing.T) {
		cause := fmt.Errorf("api failure")
		mock := &mockBackend{name: "test", err: cause}
		reg := newTestRegistry(map[string]Backend{"test": mock})

		_, err := reg.Complete(context.Background(), "test", Request{})
		var upstream *UpstreamCallError
		if !errors.As(err, &upstream) {
			t.Fatalf("got %T, want *UpstreamCallError", err)
		}
		if upstream.Backend != "test" {
			t.Errorf("Backend: got %q, want %q", upstream.Backend, "test")
		}
		if !errors.Is(err, cause) {
			t.Error("UpstreamCallError should unwrap to the cause")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		reg := newTestRegistry(nil)

		_, err := reg.Complete(context.Background(), "nonexistent", Request{})
		if !errors.Is(err, ErrBackendUnavailable) {
			t.Errorf("got %v, want ErrBackendUnavailable", err)
		}
	})
}

func TestRegistryComplete_RejectsTemperature(t *testing.T) {
	tests := []struct {
		name    string
		temp    *float64
		wantErr bool
	}{
		{"unset", nil, false},
		{"zero", Float(0), false},
		{"one", Float(1), false},
		{"mid", Float(0.7), false},
		{"negative", Float(-0.1), true},
		{"above one", Float(1.2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockBackend{name: "test", response: "ok"}
			reg := newTestRegistry(map[string]Backend{"test": mock})

			_, err := reg.Complete(context.Background(), "test", Request{Temperature: tt.temp})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTemperature) {
					t.Errorf("got %v, want ErrInvalidTemperature", err)
				}
				if mock.callCount != 0 {
					t.Errorf("backend called %d times, want 0", mock.callCount)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegistryEmbed(t *testing.T) {
	t.Run("uses embedder backend", func(t *testing.T) {
		mock := &mockBackend{name: OpenAI, vector: []float32{1, 2, 3}}
		reg := newTestRegistry(map[string]Backend{OpenAI: mock})

		resp, err := reg.Embed(context.Background(), EmbedRequest{Input: "x", Model: "m"})
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if len(resp.Embedding) != 3 {
			t.Errorf("Embedding length: got %d, want 3", len(resp.Embedding))
		}
	})

	t.Run("backend without embeddings", func(t *testing.T) {
		reg := newTestRegistry(map[string]Backend{OpenAI: chatOnly{}})

		_, err := reg.Embed(context.Background(), EmbedRequest{Input: "x"})
		var upstream *UpstreamCallError
		if !errors.As(err, &upstream) {
			t.Fatalf("got %T, want *UpstreamCallError", err)
		}
	})

	t.Run("custom embedder name", func(t *testing.T) {
		mock := &mockBackend{name: "local", vector: []float32{1}}
		reg := newTestRegistry(map[string]Backend{"local": mock})
		reg.SetEmbedder("local")

		if _, err := reg.Embed(context.Background(), EmbedRequest{Input: "x"}); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	})
}

func TestRegistrySupports(t *testing.T) {
	reg := newTestRegistry(map[string]Backend{
		"json":  &mockBackend{name: "json", json: true},
		"plain": chatOnly{},
	})

	tests := []struct {
		backend string
		cap     Capability
		want    bool
	}{
		{"json", CapChat, true},
		{"json", CapJSONMode, true},
		{"json", CapEmbeddings, true},
		{"plain", CapChat, true},
		{"plain", CapJSONMode, false},
		{"plain", CapEmbeddings, false},
		{"missing", CapChat, false},
		{"json", Capability("vision"), false},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+string(tt.cap), func(t *testing.T) {
			if got := reg.Supports(tt.backend, tt.cap); got != tt.want {
				t.Errorf("Supports(%q, %q): got %v, want %v", tt.backend, tt.cap, got, tt.want)
			}
		})
	}

	if !reg.EnforcesJSON("json") || reg.EnforcesJSON("plain") {
		t.Error("EnforcesJSON should follow CapJSONMode")
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(map[string]ProviderConfig{
		OpenAI:    {APIKey: "k1", Model: "gpt-4"},
		Claude:    {APIKey: "k2", Model: "claude-3-5-sonnet-20241022"},
		"gemini":  {APIKey: "k3"},
		"missing": {},
	})

	got := reg.Available()
	want := []string{"claude", "openai"}
	if !slices.Equal(got, want) {
		t.Errorf("Available: got %v, want %v", got, want)
	}
	if !reg.EnforcesJSON(OpenAI) {
		t.Error("openai should enforce JSON")
	}
	if reg.EnforcesJSON(Claude) {
		t.Error("claude should not enforce JSON")
	}
	if !reg.Supports(OpenAI, CapEmbeddings) || reg.Supports(Claude, CapEmbeddings) {
		t.Error("only openai offers embeddings")
	}
}

func TestNewRegistrySkipsEmptyAPIKey(t *testing.T) {
	reg := NewRegistry(map[string]ProviderConfig{
		OpenAI: {APIKey: ""},
	})
	if len(reg.Available()) != 0 {
		t.Errorf("Available: got %v, want empty", reg.Available())
	}
}

func TestRegistryConcurrency(t *testing.T) {
	mock := &mockBackend{name: "test", response: "ok"}
	reg := newTestRegistry(map[string]Backend{"test": mock})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Complete(context.Background(), "test", Request{})
		}()
		go func(i int) {
			defer wg.Done()
			reg.Register(fmt.Sprintf("extra-%d", i), chatOnly{})
			reg.Available()
		}(i)
	}
	wg.Wait()

	if mock.callCount != 50 {
		t.Errorf("callCount: got %d, want 50", mock.callCount)
	}
}
