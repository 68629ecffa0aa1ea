package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"verdant/internal/ai"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// Embedding is a generated vector with the model that produced it.
type Embedding struct {
	Vector []float32
	Model  string
	Text   string
}

// Embed generates an embedding for text. An empty model selects the
// configured embedding model.
func (o *Orchestrator) Embed(ctx context.Context, text, model string) (*Embedding, error) {
	if model == "" {
		model = o.opts.EmbeddingModel
	}
	text = strings.TrimSpace(text)

	if o.opts.Vectors != nil {
		if vec, ok := o.opts.Vectors.Get(ctx, model, text); ok {
			return &Embedding{Vector: vec, Model: model, Text: text}, nil
		}
	}

	resp, err := o.registry.Embed(ctx, ai.EmbedRequest{Input: text, Model: model})
	if err != nil {
		slog.Error("embedding failed", "model", model, "error", err)
		return nil, &StageError{Stage: Invoked, Err: err}
	}
	if o.opts.Vectors != nil {
		o.opts.Vectors.Set(ctx, model, text, resp.Embedding)
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &Embedding{Vector: resp.Embedding, Model: model, Text: text}, nil
}

// EmbedProfile renders a text template (such as customer_profile) and
// embeds the result.
func (o *Orchestrator) EmbedProfile(ctx context.Context, template string, pctx prompt.Context) (*Embedding, error) {
	rendered, err := o.catalog.Render(template, pctx)
	if err != nil {
		return nil, &StageError{Stage: Prompted, Err: err}
	}
	return o.Embed(ctx, rendered.Text, "")
}

// EmbedAndUpsert stores emb in table, merging on the conflict columns of
// keys. Repeating the call with the same keys leaves a single row carrying
// the latest vector.
func (o *Orchestrator) EmbedAndUpsert(ctx context.Context, table string, emb *Embedding, keys store.Row, conflict ...string) (store.Row, error) {
	if want := o.opts.EmbeddingDimensions; want > 0 && len(emb.Vector) != want {
		return nil, &StageError{Stage: Parsed, Err: fmt.Errorf("embedding has %d dimensions, column holds %d", len(emb.Vector), want)}
	}

	row := store.Row{
		"embedding":      emb.Vector,
		"embedding_text": emb.Text,
		"model":          emb.Model,
	}
	for k, v := range keys {
		row[k] = v
	}

	rec, err := o.store.Upsert(ctx, table, row, conflict...)
	if err != nil {
		slog.Error("storing embedding failed", "table", table, "error", err)
		return nil, &StageError{Stage: Persisted, Err: err}
	}
	return rec, nil
}
