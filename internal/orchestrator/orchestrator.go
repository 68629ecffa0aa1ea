// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package orchestrator runs one generation end to end: render a prompt
// template, call a model backend once, parse the answer against the
// template's schema and persist the typed result with its provenance.
//
// A run moves through RECEIVED, PROMPTED, INVOKED, PARSED and PERSISTED.
// A failure stops the run and is returned as a *StageError naming the stage
// that could not be reached; the underlying component error stays available
// through errors.As.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"verdant/internal/ai"
	"verdant/internal/parse"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// Stage is a state of a generation run.
type Stage string

const (
	Received  Stage = "RECEIVED"
	Prompted  Stage = "PROMPTED"
	Invoked   Stage = "INVOKED"
	Parsed    Stage = "PARSED"
	Persisted Stage = "PERSISTED"
)

// promptAuditLen is how much of the prompt is kept with stored records.
const promptAuditLen = 500

// StageError reports the stage a run failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(string(e.Stage)), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NotFoundError means a referenced entity does not exist. It is raised
// before any model call.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// Provenance describes how a result was produced.
type Provenance struct {
	Template    string
	Backend     string
	Model       string
	Prompt      string // first 500 characters of the rendered prompt
	GeneratedAt time.Time
	Usage       ai.Usage
}

// WriteFunc persists a parsed result and returns the stored record.
type WriteFunc[T any] func(ctx context.Context, ds store.Datastore, result T, prov Provenance) (store.Row, error)

// Job describes one generation.
type Job[T any] struct {
	Template string
	Context  prompt.Context

	// Backend and Model override the template's hint and the configured
	// model for that backend.
	Backend   string
	Model     string
	MaxTokens int

	// Write is optional. Without it the run ends at PARSED.
	Write WriteFunc[T]
}

// Result is a completed run.
type Result[T any] struct {
	Value      T
	Raw        string
	Record     store.Row
	Provenance Provenance
	Stage      Stage
}

// Options configures the orchestrator.
type Options struct {
	// Models maps backend name to the model used when a job does not name one.
	Models         map[string]string
	EmbeddingModel string

	// EmbeddingDimensions is the width of the stored vector columns. Zero
	// skips the check.
	EmbeddingDimensions int

	// Vectors caches embeddings by model and text. Optional.
	Vectors VectorCache

	// Usage receives one entry per answered model call. Optional.
	Usage UsageRecorder
}

// UsageRecorder keeps a record of model calls.
type UsageRecorder interface {
	Record(ctx context.Context, e store.UsageEntry)
}

// VectorCache stores embedding vectors between requests.
type VectorCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool)
	Set(ctx context.Context, model, text string, vec []float32)
}

// Orchestrator holds the long-lived collaborators shared by all requests.
// It carries no per-request state.
type Orchestrator struct {
	catalog  *prompt.Catalog
	registry *ai.Registry
	store    store.Datastore
	opts     Options
	now      func() time.Time
}

// New creates an Orchestrator.
func New(catalog *prompt.Catalog, registry *ai.Registry, ds store.Datastore, opts Options) *Orchestrator {
	if opts.Models == nil {
		opts.Models = map[string]string{}
	}
	return &Orchestrator{
		catalog:  catalog,
		registry: registry,
		store:    ds,
		opts:     opts,
		now:      time.Now,
	}
}

// Store returns the datastore.
func (o *Orchestrator) Store() store.Datastore { return o.store }

// Registry returns the model backend registry.
func (o *Orchestrator) Registry() *ai.Registry { return o.registry }

// ModelFor returns the configured model for a backend.
func (o *Orchestrator) ModelFor(backend string) string { return o.opts.Models[backend] }

// Fetch loads one row and turns a missing row into a *NotFoundError for
// entity. Other failures are returned as they are.
func (o *Orchestrator) Fetch(ctx context.Context, table, entity string, filters ...store.Filter) (store.Row, error) {
	row, err := o.store.Get(ctx, table, filters...)
	if errors.Is(err, store.ErrNotFound) {
		id := ""
		for _, f := range filters {
			if f.Field == "id" {
				id = fmt.Sprint(f.Value)
			}
		}
		return nil, &NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, &StageError{Stage: Received, Err: err}
	}
	return row, nil
}

// Run executes job. It makes exactly one model call and at most one call to
// job.Write.
func Run[T any](ctx context.Context, o *Orchestrator, job Job[T]) (*Result[T], error) {
	log := slog.With("template", job.Template)

	rendered, err := o.catalog.Render(job.Template, job.Context)
	if err != nil {
		return nil, &StageError{Stage: Prompted, Err: err}
	}

	backend := job.Backend
	if backend == "" {
		backend = rendered.Backend
	}
	if backend == "" {
		backend = ai.OpenAI
	}
	model := job.Model
	if model == "" {
		model = o.opts.Models[backend]
	}
	maxTokens := job.MaxTokens
	if maxTokens == 0 {
		maxTokens = rendered.MaxTokens
	}
	enforced := o.registry.EnforcesJSON(backend)

	log.Debug("prompt rendered", "backend", backend, "model", model, "chars", len(rendered.Text))

	resp, err := o.registry.Complete(ctx, backend, ai.Request{
		Model:       model,
		System:      rendered.System,
		Messages:    []ai.Message{{Role: "user", Content: rendered.Text}},
		MaxTokens:   maxTokens,
		Temperature: rendered.Temperature,
		JSON:        rendered.JSON && enforced,
	})
	if err != nil {
		log.Error("model call failed", "backend", backend, "error", err)
		return nil, &StageError{Stage: Invoked, Err: err}
	}
	if resp.Model != "" {
		model = resp.Model
	}

	res := &Result[T]{
		Raw:   resp.Text,
		Stage: Invoked,
		Provenance: Provenance{
			Template:    job.Template,
			Backend:     backend,
			Model:       model,
			Prompt:      rendered.Truncated(promptAuditLen),
			GeneratedAt: o.now().UTC(),
			Usage:       resp.Usage,
		},
	}
	if o.opts.Usage != nil {
		// Tokens are spent whether or not the answer survives parsing.
		defer func() {
			o.opts.Usage.Record(context.WithoutCancel(ctx), store.UsageEntry{
				Template:     job.Template,
				Backend:      backend,
				Model:        model,
				Stage:        string(res.Stage),
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			})
		}()
	}

	if rendered.JSON {
		v, err := parse.Decode[T](resp.Text, parse.ModeFor(enforced), rendered.Schema)
		if err != nil {
			log.Error("model response rejected", "backend", backend, "error", err)
			return nil, &StageError{Stage: Parsed, Err: err}
		}
		res.Value = v
	} else {
		s, ok := any(&res.Value).(*string)
		if !ok {
			return nil, &StageError{Stage: Parsed, Err: fmt.Errorf("template %s produces text, not %T", job.Template, res.Value)}
		}
		*s = strings.TrimSpace(resp.Text)
	}
	res.Stage = Parsed

	if job.Write != nil {
		rec, err := job.Write(ctx, o.store, res.Value, res.Provenance)
		if err != nil {
			log.Error("persisting result failed", "error", err)
			return nil, &StageError{Stage: Persisted, Err: err}
		}
		res.Record = rec
		res.Stage = Persisted
	}

	log.Info("generation completed",
		"backend", backend,
		"model", model,
		"stage", res.Stage,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return res, nil
}

// InsertInto returns a WriteFunc that inserts the row built from the result.
func InsertInto[T any](table string, build func(T, Provenance) store.Row) WriteFunc[T] {
	return func(ctx context.Context, ds store.Datastore, result T, prov Provenance) (store.Row, error) {
		return ds.Insert(ctx, table, build(result, prov))
	}
}
