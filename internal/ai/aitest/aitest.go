// Package aitest provides a scripted ai.Backend for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"verdant/internal/ai"
)

// Backend replies with scripted texts and counts calls. Replies are used in
// order; the last one repeats.
type Backend struct {
	name string
	json bool

	mu      sync.Mutex
	replies []string
	err     error
	vector  []float32
	reqs    []ai.Request
	embeds  []ai.EmbedRequest
}

// New returns a backend called name. enforcesJSON selects strict parsing.
func New(name string, enforcesJSON bool, replies ...string) *Backend {
	return &Backend{name: name, json: enforcesJSON, replies: replies, vector: []float32{0.1, 0.2, 0.3}}
}

// Fail makes every following call return err.
func (b *Backend) Fail(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	return b
}

// WithVector sets the embedding returned by Embed.
func (b *Backend) WithVector(v []float32) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vector = v
	return b
}

// Reply appends scripted replies.
func (b *Backend) Reply(texts ...string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, texts...)
	return b
}

func (b *Backend) Name() string       { return b.name }
func (b *Backend) EnforcesJSON() bool { return b.json }

func (b *Backend) Complete(_ context.Context, req ai.Request) (*ai.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.reqs)
	b.reqs = append(b.reqs, req)
	if b.err != nil {
		return nil, b.err
	}
	if len(b.replies) == 0 {
		return nil, errors.New("aitest: no scripted reply")
	}
	text := b.replies[len(b.replies)-1]
	if n < len(b.replies) {
		text = b.replies[n]
	}

	model := req.Model
	if model == "" {
		model = b.name + "-test"
	}
	return &ai.Response{
		Text:    text,
		Model:   model,
		Backend: b.name,
		Usage:   ai.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
	}, nil
}

func (b *Backend) Embed(_ context.Context, req ai.EmbedRequest) (*ai.EmbedResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.embeds = append(b.embeds, req)
	if b.err != nil {
		return nil, b.err
	}
	return &ai.EmbedResponse{
		Embedding: append([]float32(nil), b.vector...),
		Model:     req.Model,
		Usage:     ai.Usage{InputTokens: 5, TotalTokens: 5},
	}, nil
}

// Calls returns the number of Complete calls.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

// Requests returns the Complete requests received.
func (b *Backend) Requests() []ai.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ai.Request(nil), b.reqs...)
}

// Embeds returns the number of Embed calls.
func (b *Backend) Embeds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.embeds)
}

// Registry registers the backends under their names. The openai backend,
// when present, serves embeddings.
func Registry(backends ...*Backend) *ai.Registry {
	r := ai.NewRegistry(nil)
	for _, b := range backends {
		r.Register(b.name, b)
	}
	r.SetEmbedder(ai.OpenAI)
	return r
}
