// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai is the model invoker: a small set of hosted text-generation
// backends (OpenAI chat completions, Anthropic messages) behind one Backend
// interface, plus embeddings. The Registry holds one long-lived client per
// backend and is shared read-only across requests.
package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Backend names.
const (
	OpenAI = "openai"
	Claude = "claude"
)

// RequestTimeout bounds a single HTTP call to a hosted backend.
const RequestTimeout = 60 * time.Second

// Capability is an optional feature a backend may offer.
type Capability string

const (
	CapChat       Capability = "chat"
	CapJSONMode   Capability = "json_mode"
	CapEmbeddings Capability = "embeddings"
)

// ErrBackendUnavailable is returned when the named backend has no API key
// configured or was never registered.
var ErrBackendUnavailable = errors.New("backend not configured")

// ErrInvalidTemperature is returned for a temperature outside [0, 1].
var ErrInvalidTemperature = errors.New("temperature must be between 0 and 1")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call. Either Messages or a System +
// user message pair can be supplied; backends fold them as they need.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
	// JSON asks the backend to enforce a JSON object response where supported.
	JSON bool
}

// Usage holds the token counters reported by the backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the raw text returned by a backend.
type Response struct {
	Text    string
	Model   string
	Backend string
	Usage   Usage
}

// EmbedRequest asks for a single embedding vector.
type EmbedRequest struct {
	Input string
	Model string
}

// EmbedResponse carries the vector and the model that produced it.
type EmbedResponse struct {
	Embedding []float32
	Model     string
	Usage     Usage
}

// Backend is a hosted text-generation API.
type Backend interface {
	// Name returns the backend identifier (e.g. "openai", "claude").
	Name() string

	// Complete sends the request and returns the generated text.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Embedder is implemented by backends that expose an embeddings endpoint.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
}

// jsonEnforcer is implemented by backends that can force a JSON object reply.
type jsonEnforcer interface {
	EnforcesJSON() bool
}

// ProviderConfig holds the credentials and settings for a single backend.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// UpstreamCallError wraps every failure of a backend call.
type UpstreamCallError struct {
	Backend string
	Err     error
}

func (e *UpstreamCallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Backend, e.Err)
}

func (e *UpstreamCallError) Unwrap() error { return e.Err }

// Registry selects backends by name. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	embedder string
}

// NewRegistry creates a registry with a backend for every config that has a
// non-empty API key. Unknown names and empty keys are skipped.
func NewRegistry(configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		backends: make(map[string]Backend),
		embedder: OpenAI,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case OpenAI:
			r.backends[name] = newOpenAI(cfg)
		case Claude:
			r.backends[name] = newClaude(cfg)
		}
	}

	return r
}

// Register adds or replaces a backend. Tests use it to inject fakes.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// SetEmbedder names the backend used by Embed.
func (r *Registry) SetEmbedder(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedder = name
}

// Backend returns the named backend.
func (r *Registry) Backend(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, &UpstreamCallError{Backend: name, Err: ErrBackendUnavailable}
	}
	return b, nil
}

// Complete validates the request and sends it to the named backend. Backend
// failures are returned as *UpstreamCallError and never retried.
func (r *Registry) Complete(ctx context.Context, name string, req Request) (*Response, error) {
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 1) {
		return nil, fmt.Errorf("ai: %.2f: %w", *req.Temperature, ErrInvalidTemperature)
	}

	b, err := r.Backend(name)
	if err != nil {
		return nil, err
	}

	resp, err := b.Complete(ctx, req)
	if err != nil {
		return nil, &UpstreamCallError{Backend: name, Err: err}
	}
	if resp.Backend == "" {
		resp.Backend = name
	}
	return resp, nil
}

// Embed generates an embedding with the configured embedding backend.
func (r *Registry) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	r.mu.RLock()
	name := r.embedder
	r.mu.RUnlock()

	b, err := r.Backend(name)
	if err != nil {
		return nil, err
	}
	e, ok := b.(Embedder)
	if !ok {
		return nil, &UpstreamCallError{Backend: name, Err: fmt.Errorf("embeddings not supported")}
	}

	resp, err := e.Embed(ctx, req)
	if err != nil {
		return nil, &UpstreamCallError{Backend: name, Err: err}
	}
	return resp, nil
}

// EnforcesJSON reports whether the named backend guarantees a JSON object
// reply when Request.JSON is set.
func (r *Registry) EnforcesJSON(name string) bool {
	return r.Supports(name, CapJSONMode)
}

// Supports reports whether the named backend is configured and offers cap.
func (r *Registry) Supports(name string, c Capability) bool {
	b, err := r.Backend(name)
	if err != nil {
		return false
	}
	switch c {
	case CapChat:
		return true
	case CapJSONMode:
		j, ok := b.(jsonEnforcer)
		return ok && j.EnforcesJSON()
	case CapEmbeddings:
		_, ok := b.(Embedder)
		return ok
	}
	return false
}

// Available returns the sorted names of all configured backends.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }
