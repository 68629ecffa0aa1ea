// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// --- Content generation ---
//
// Tips come from Claude as plain text; emails and marketing copy are JSON.
// Tips and emails are kept in ai_generated_content for reuse.

type tipRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
	Season     string `json:"season,omitempty"`
	TipType    string `json:"tip_type"`
}

// GenerateTip writes a short personalized tip.
func (a *API) GenerateTip(w http.ResponseWriter, r *http.Request) {
	const op = "Tip generation"

	var req tipRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if req.TipType == "" {
		req.TipType = "lawn_care"
	}
	if err := checkEnum("tip_type", req.TipType, models.TipTypes); err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{"tip_type": req.TipType, "season": req.Season}
	if req.PropertyID != "" {
		property, err := a.fetch(r.Context(), "properties", "Property", req.PropertyID)
		if err != nil {
			fail(w, op, err)
			return
		}
		pctx["property"] = property
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[string]{
		Template: "content_tip",
		Context:  pctx,
		Write: orchestrator.InsertInto("ai_generated_content", func(tip string, p orchestrator.Provenance) store.Row {
			return store.Row{
				"content_type": "tip",
				"input_params": req,
				"model":        p.Model,
				"content":      tip,
			}
		}),
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tip":   res.Value,
		"type":  req.TipType,
		"model": res.Provenance.Model,
	})
}

type emailRequest struct {
	CampaignType   string   `json:"campaign_type"`
	TargetAudience string   `json:"target_audience"`
	Tone           string   `json:"tone,omitempty"`
	KeyPoints      []string `json:"key_points"`
}

// GenerateEmail writes an email campaign.
func (a *API) GenerateEmail(w http.ResponseWriter, r *http.Request) {
	const op = "Email generation"

	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if err := checkEnum("campaign_type", req.CampaignType, models.CampaignTypes); err != nil {
		fail(w, op, err)
		return
	}
	if len(req.KeyPoints) > maxListLen {
		fail(w, op, badRequest("key_points may hold at most %d items", maxListLen))
		return
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "content_email",
		Context: prompt.Context{
			"campaign_type":   req.CampaignType,
			"target_audience": req.TargetAudience,
			"tone":            req.Tone,
			"key_points":      req.KeyPoints,
		},
		Write: func(ctx context.Context, ds store.Datastore, email models.Insights, p orchestrator.Provenance) (store.Row, error) {
			body, err := json.Marshal(email)
			if err != nil {
				return nil, err
			}
			return ds.Insert(ctx, "ai_generated_content", store.Row{
				"content_type": "email",
				"input_params": req,
				"model":        p.Model,
				"content":      string(body),
			})
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":         res.Value,
		"campaign_type": req.CampaignType,
		"model":         res.Provenance.Model,
	})
}

// GenerateMarketingCopy writes a headline, description and benefits for a
// service. A target neighborhood that does not exist is ignored.
func (a *API) GenerateMarketingCopy(w http.ResponseWriter, r *http.Request) {
	const op = "Marketing copy generation"

	var req struct {
		ServiceType        string         `json:"service_type"`
		TargetNeighborhood string         `json:"target_neighborhood"`
		PromotionDetails   map[string]any `json:"promotion_details"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{"service_type": req.ServiceType}
	if len(req.PromotionDetails) > 0 {
		pctx["promotion"] = req.PromotionDetails
	}
	if req.TargetNeighborhood != "" {
		n, err := a.store.Get(r.Context(), "neighborhoods", store.Eq("name", req.TargetNeighborhood))
		switch {
		case err == nil:
			pctx["neighborhood"] = n
		case errors.Is(err, store.ErrNotFound):
			slog.Warn("marketing copy: unknown neighborhood", "name", req.TargetNeighborhood)
		default:
			fail(w, op, err)
			return
		}
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "marketing_copy",
		Context:  pctx,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"copy":         res.Value,
		"service_type": req.ServiceType,
		"model":        res.Provenance.Model,
	})
}

// GenerateSocialPost writes a post tuned to a platform's conventions.
func (a *API) GenerateSocialPost(w http.ResponseWriter, r *http.Request) {
	const op = "Social post generation"

	platform, err := requireQuery(r, "platform")
	if err != nil {
		fail(w, op, err)
		return
	}
	topic, err := requireQuery(r, "topic")
	if err != nil {
		fail(w, op, err)
		return
	}
	hashtags, err := queryBool(r, "include_hashtags", true)
	if err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{
		"platform":         platform,
		"topic":            topic,
		"include_hashtags": hashtags,
	}
	if g, ok := models.SocialGuidelines[platform]; ok {
		pctx["guidelines"] = g
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[string]{
		Template: "social_post",
		Context:  pctx,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"post":     res.Value,
		"platform": platform,
		"topic":    topic,
		"model":    res.Provenance.Model,
	})
}
