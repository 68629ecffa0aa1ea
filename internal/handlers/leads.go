// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// leadScoreResponse is the score of one lead.
type leadScoreResponse struct {
	LeadID string `json:"lead_id"`
	models.LeadScore
}

// scoreLead loads a lead and asks the model to score it. Nothing is stored.
func (a *API) scoreLead(ctx context.Context, leadID string) (*leadScoreResponse, error) {
	lead, err := a.fetch(ctx, "leads", "Lead", leadID)
	if err != nil {
		return nil, err
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.LeadScore]{
		Template: "lead_score",
		Context:  prompt.Context{"lead": lead},
	})
	if err != nil {
		return nil, err
	}
	return &leadScoreResponse{LeadID: leadID, LeadScore: res.Value}, nil
}

// ScoreLead scores a single lead.
func (a *API) ScoreLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID string `json:"lead_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, "Lead scoring", err)
		return
	}
	if strings.TrimSpace(req.LeadID) == "" {
		fail(w, "Lead scoring", badRequest("lead_id is required"))
		return
	}

	score, err := a.scoreLead(r.Context(), req.LeadID)
	if err != nil {
		fail(w, "Lead scoring", err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// BatchScoreLeads scores leads one at a time and writes each score back to
// its lead. A lead that fails is logged and skipped; the others are still
// scored.
func (a *API) BatchScoreLeads(w http.ResponseWriter, r *http.Request) {
	const op = "Batch scoring"

	var req struct {
		LeadIDs []string `json:"lead_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if len(req.LeadIDs) > MaxBatchSize {
		fail(w, op, badRequest("lead_ids may hold at most %d ids", MaxBatchSize))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.batchTimeout)
	defer cancel()

	batch := orchestrator.Batch(ctx, req.LeadIDs, func(ctx context.Context, id string) (*leadScoreResponse, error) {
		score, err := a.scoreLead(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err := a.store.Update(ctx, "leads", store.Row{
			"score":                   float64(score.Score),
			"score_factors":           score.Factors,
			"estimated_monthly_value": float64(score.EstimatedMonthlyValue),
		}, store.ByID(id))
		if err != nil {
			return nil, err
		}
		if len(updated) == 0 {
			return nil, errors.New("lead disappeared before its score was saved")
		}
		return score, nil
	})

	results := batch.Results
	if results == nil {
		results = []*leadScoreResponse{}
	}
	failed := batch.Failed
	if failed == nil {
		failed = []orchestrator.BatchFailure{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("Scored %d of %d leads", len(results), len(req.LeadIDs)),
		"scored_count": len(results),
		"results":      results,
		"failed":       failed,
	})
}

// SimilarLeads finds leads close to the given one. The stored embedding is
// used when there is one; otherwise the lead profile is embedded on the fly.
func (a *API) SimilarLeads(w http.ResponseWriter, r *http.Request) {
	const op = "Similar lead search"
	leadID := chi.URLParam(r, "leadID")

	limit, err := queryInt(r, "limit", 5)
	if err == nil {
		err = checkLimit("limit", limit)
	}
	if err != nil {
		fail(w, op, err)
		return
	}

	if _, err := uuid.Parse(leadID); err != nil {
		fail(w, op, &orchestrator.NotFoundError{Entity: "Lead", ID: leadID})
		return
	}

	var query any
	stored, err := a.store.Get(r.Context(), "customer_embeddings", store.Eq("lead_id", leadID))
	switch {
	case err == nil:
		query = stored["embedding"]
	case errors.Is(err, store.ErrNotFound):
		lead, err := a.fetch(r.Context(), "leads", "Lead", leadID)
		if err != nil {
			fail(w, op, err)
			return
		}
		emb, err := a.orch.EmbedProfile(r.Context(), "lead_profile", prompt.Context{"lead": lead})
		if err != nil {
			fail(w, op, err)
			return
		}
		query = emb.Vector
	default:
		fail(w, op, err)
		return
	}

	similar, err := a.store.Match(r.Context(), "search_similar_leads", store.Row{
		"query_embedding": query,
		"match_count":     limit,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	if similar == nil {
		similar = []store.Row{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lead_id":       leadID,
		"similar_leads": similar,
		"count":         len(similar),
	})
}

// EnrichLead infers contact timing, budget and urgency for a lead.
func (a *API) EnrichLead(w http.ResponseWriter, r *http.Request) {
	const op = "Lead enrichment"
	leadID := chi.URLParam(r, "leadID")

	lead, err := a.fetch(r.Context(), "leads", "Lead", leadID)
	if err != nil {
		fail(w, op, err)
		return
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "lead_enrich",
		Context:  prompt.Context{"lead": lead},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lead_id":    leadID,
		"enrichment": res.Value,
	})
}
