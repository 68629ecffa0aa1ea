// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"verdant/internal/ai"
	"verdant/internal/models"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// --- Core AI endpoints ---
//
// Embeddings, raw chat passthrough and semantic search. These talk to the
// registry directly; only the customer embedding goes through a template.

const defaultChatMaxTokens = 1000

type embeddingRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// GenerateEmbedding returns the embedding vector for arbitrary text.
func (a *API) GenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, "Embedding generation", err)
		return
	}
	if err := checkText("text", req.Text, maxTextLen); err != nil {
		fail(w, "Embedding generation", err)
		return
	}

	emb, err := a.orch.Embed(r.Context(), req.Text, req.Model)
	if err != nil {
		fail(w, "Embedding generation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"embedding":  emb.Vector,
		"model":      emb.Model,
		"dimensions": len(emb.Vector),
	})
}

// CustomerEmbedding embeds a customer's profile and stores it, replacing
// any earlier embedding for the same customer.
func (a *API) CustomerEmbedding(w http.ResponseWriter, r *http.Request) {
	const op = "Customer embedding"

	customerID, err := requireQuery(r, "customer_id")
	if err != nil {
		fail(w, op, err)
		return
	}

	customer, err := a.fetch(r.Context(), "customers", "Customer", customerID)
	if err != nil {
		fail(w, op, err)
		return
	}

	emb, err := a.orch.EmbedProfile(r.Context(), "customer_profile", prompt.Context{"customer": customer})
	if err != nil {
		fail(w, op, err)
		return
	}
	if _, err := a.orch.EmbedAndUpsert(r.Context(), "customer_embeddings", emb, store.Row{"customer_id": customerID}, "customer_id"); err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Customer embedding generated successfully",
		"customer_id": customerID,
	})
}

type chatRequest struct {
	Messages  []ai.Message `json:"messages"`
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
}

// ChatOpenAI passes a chat transcript to the OpenAI backend.
func (a *API) ChatOpenAI(w http.ResponseWriter, r *http.Request) {
	const op = "OpenAI chat"

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if len(req.Messages) == 0 {
		fail(w, op, badRequest("messages is required"))
		return
	}
	for _, m := range req.Messages {
		if err := checkEnum("role", m.Role, []string{"system", "user", "assistant"}); err != nil {
			fail(w, op, err)
			return
		}
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultChatMaxTokens
	}

	resp, err := a.registry.Complete(r.Context(), ai.OpenAI, ai.Request{
		Model:     a.model(req.Model, ai.OpenAI),
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response": resp.Text,
		"model":    resp.Model,
		"usage": map[string]int{
			"prompt_tokens":     resp.Usage.InputTokens,
			"completion_tokens": resp.Usage.OutputTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	})
}

type claudeRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

// ChatClaude sends a single prompt to the Claude backend.
func (a *API) ChatClaude(w http.ResponseWriter, r *http.Request) {
	const op = "Claude chat"

	var req claudeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if err := checkText("prompt", req.Prompt, maxPromptLen); err != nil {
		fail(w, op, err)
		return
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultChatMaxTokens
	}

	resp, err := a.registry.Complete(r.Context(), ai.Claude, ai.Request{
		Model:     a.model(req.Model, ai.Claude),
		Messages:  []ai.Message{{Role: "user", Content: req.Prompt}},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response": resp.Text,
		"model":    resp.Model,
		"usage": map[string]int{
			"input_tokens":  resp.Usage.InputTokens,
			"output_tokens": resp.Usage.OutputTokens,
		},
	})
}

// SemanticSearch embeds the query and runs the similarity function of the
// requested table.
func (a *API) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	const op = "Semantic search"

	query, err := requireQuery(r, "query")
	if err != nil {
		fail(w, op, err)
		return
	}
	table := r.URL.Query().Get("table")
	if table == "" {
		table = "properties"
	}
	if err := checkEnum("table", table, models.SearchTables); err != nil {
		fail(w, op, err)
		return
	}
	limit, err := queryInt(r, "limit", 5)
	if err == nil {
		err = checkLimit("limit", limit)
	}
	if err != nil {
		fail(w, op, err)
		return
	}

	emb, err := a.orch.Embed(r.Context(), query, "")
	if err != nil {
		fail(w, op, err)
		return
	}
	results, err := a.store.Match(r.Context(), "search_"+table+"_by_embedding", store.Row{
		"query_embedding": emb.Vector,
		"match_count":     limit,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	if results == nil {
		results = []store.Row{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
