// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"verdant/internal/ai"
	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// --- Hyper-local ad generation ---
//
// Every generated creative is stored as a draft in ad_creatives together
// with the model that wrote it and the start of the prompt it came from.

const (
	defaultMaxNeighborhoods = 5
	maxVariants             = 10
)

type adGenerationRequest struct {
	CampaignID       string         `json:"campaign_id"`
	NeighborhoodIDs  []string       `json:"neighborhood_ids"`
	ZipCode          string         `json:"zip_code"`
	MaxNeighborhoods int            `json:"max_neighborhoods"`
	AdType           string         `json:"ad_type"`
	Platforms        []string       `json:"platforms"`
	Tone             string         `json:"tone"`
	Promotion        map[string]any `json:"promotion"`
	UseModel         string         `json:"use_model"`
}

func (req *adGenerationRequest) validate() error {
	if strings.TrimSpace(req.CampaignID) == "" {
		return badRequest("campaign_id is required")
	}
	if len(req.NeighborhoodIDs) == 0 && req.ZipCode == "" {
		return badRequest("neighborhood_ids or zip_code is required")
	}
	if len(req.NeighborhoodIDs) > maxListLen {
		return badRequest("neighborhood_ids may hold at most %d ids", maxListLen)
	}
	if err := checkEnum("ad_type", req.AdType, models.AdTypes); err != nil {
		return err
	}
	if len(req.Platforms) == 0 {
		return badRequest("platforms is required")
	}
	if err := checkEnums("platforms", req.Platforms, models.AdPlatforms); err != nil {
		return err
	}
	if req.Tone == "" {
		req.Tone = "friendly"
	}
	if err := checkEnum("tone", req.Tone, models.Tones); err != nil {
		return err
	}
	if req.UseModel == "" {
		req.UseModel = models.ModelGPT4
	}
	if err := checkEnum("use_model", req.UseModel, models.ModelChoices); err != nil {
		return err
	}
	if req.MaxNeighborhoods <= 0 {
		req.MaxNeighborhoods = defaultMaxNeighborhoods
	}
	return nil
}

// backend maps the requested model choice to a registry backend.
func (req *adGenerationRequest) backend() string {
	if req.UseModel == models.ModelClaude {
		return ai.Claude
	}
	return ai.OpenAI
}

// targetNeighborhoods returns the ids named in the request followed by the
// neighborhoods serving the zip code, without duplicates.
func (a *API) targetNeighborhoods(ctx context.Context, req *adGenerationRequest) ([]string, error) {
	ids := make([]string, 0, len(req.NeighborhoodIDs))
	seen := make(map[string]bool)
	for _, id := range req.NeighborhoodIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if req.ZipCode == "" {
		return ids, nil
	}

	rows, err := a.store.List(ctx, "neighborhoods", store.Query{
		Filters: []store.Filter{store.Contains("zip_codes", []string{req.ZipCode})},
		OrderBy: "name",
		Limit:   req.MaxNeighborhoods,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if id := r.ID(); !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GenerateAds writes platform-specific ads for each target neighborhood.
// Unknown neighborhoods are skipped.
func (a *API) GenerateAds(w http.ResponseWriter, r *http.Request) {
	const op = "Ad generation"
	ctx := r.Context()

	var req adGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		fail(w, op, err)
		return
	}

	if _, err := a.fetch(ctx, "ad_campaigns", "Campaign", req.CampaignID); err != nil {
		fail(w, op, err)
		return
	}
	targets, err := a.targetNeighborhoods(ctx, &req)
	if err != nil {
		fail(w, op, err)
		return
	}

	ads := []store.Row{}
	for _, nid := range targets {
		neighborhood, err := a.fetch(ctx, "neighborhoods", "Neighborhood", nid)
		var notFound *orchestrator.NotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("ad generation: skipping unknown neighborhood", "neighborhood_id", nid)
			continue
		}
		if err != nil {
			fail(w, op, err)
			return
		}

		created, err := a.generateNeighborhoodAds(ctx, &req, neighborhood)
		if err != nil {
			fail(w, op, err)
			return
		}
		ads = append(ads, created...)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("Generated %d ad variants across %d neighborhoods", len(ads), len(targets)),
		"ads":        ads,
		"model_used": req.UseModel,
	})
}

// generateNeighborhoodAds runs one generation for a neighborhood and stores
// one creative per returned variant.
func (a *API) generateNeighborhoodAds(ctx context.Context, req *adGenerationRequest, neighborhood store.Row) ([]store.Row, error) {
	pctx := prompt.Context{
		"neighborhood": neighborhood,
		"ad_type":      req.AdType,
		"platforms":    req.Platforms,
		"tone":         req.Tone,
	}
	if len(req.Promotion) > 0 {
		pctx["promotion"] = req.Promotion
	}

	var created []store.Row
	_, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.AdVariants]{
		Template: "ad_generation",
		Context:  pctx,
		Backend:  req.backend(),
		Write: func(ctx context.Context, ds store.Datastore, out models.AdVariants, p orchestrator.Provenance) (store.Row, error) {
			var last store.Row
			for _, v := range out.Variants {
				row, err := ds.Insert(ctx, "ad_creatives", store.Row{
					"campaign_id":         req.CampaignID,
					"name":                neighborhood.String("name") + " - " + titleCase(v.Platform),
					"ad_type":             req.AdType,
					"headline":            v.Headline,
					"body_text":           v.Body,
					"call_to_action":      v.CTA,
					"neighborhood_id":     neighborhood.ID(),
					"hyper_local_content": v,
					"generated_by":        "ai",
					"ai_model":            req.UseModel,
					"generation_prompt":   p.Prompt,
					"status":              "draft",
				})
				if err != nil {
					return nil, err
				}
				created = append(created, row)
				last = row
			}
			return last, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type variantRequest struct {
	CreativeID    string   `json:"creative_id"`
	NumVariants   int      `json:"num_variants"`
	TestVariables []string `json:"test_variables"`
}

// GenerateVariants creates A/B test copies of an existing creative. Each
// variant keeps the original's targeting and is stored as a non-control
// creative.
func (a *API) GenerateVariants(w http.ResponseWriter, r *http.Request) {
	const op = "Variant generation"

	var req variantRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if strings.TrimSpace(req.CreativeID) == "" {
		fail(w, op, badRequest("creative_id is required"))
		return
	}
	if req.NumVariants == 0 {
		req.NumVariants = 3
	}
	if req.NumVariants < 1 || req.NumVariants > maxVariants {
		fail(w, op, badRequest("num_variants must be between 1 and %d", maxVariants))
		return
	}

	original, err := a.fetch(r.Context(), "ad_creatives", "Creative", req.CreativeID)
	if err != nil {
		fail(w, op, err)
		return
	}

	variants := []store.Row{}
	_, err = orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.ABVariants]{
		Template: "ad_variants",
		Context: prompt.Context{
			"creative":       original,
			"num_variants":   req.NumVariants,
			"test_variables": req.TestVariables,
		},
		Write: func(ctx context.Context, ds store.Datastore, out models.ABVariants, _ orchestrator.Provenance) (store.Row, error) {
			var last store.Row
			for _, v := range out.Variants {
				row := store.Row{}
				for k, val := range original {
					row[k] = val
				}
				delete(row, "id")
				delete(row, "created_at")
				row["name"] = original.String("name") + " - Variant " + v.VariantName
				row["headline"] = v.Headline
				row["body_text"] = v.Body
				row["call_to_action"] = v.CTA
				row["variant_name"] = v.VariantName
				row["is_control"] = false

				stored, err := ds.Insert(ctx, "ad_creatives", row)
				if err != nil {
					return nil, err
				}
				stored["changes_made"] = v.ChangesMade
				variants = append(variants, stored)
				last = stored
			}
			return last, nil
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":              fmt.Sprintf("Generated %d variants", len(variants)),
		"original_creative_id": req.CreativeID,
		"variants":             variants,
	})
}

// OptimizeTargeting aggregates a campaign's delivery per neighborhood and
// asks for budget and targeting recommendations.
func (a *API) OptimizeTargeting(w http.ResponseWriter, r *http.Request) {
	const op = "Targeting optimization"
	ctx := r.Context()

	campaignID, err := requireQuery(r, "campaign_id")
	if err != nil {
		fail(w, op, err)
		return
	}
	threshold, err := queryFloat(r, "performance_threshold", 0.02)
	if err != nil {
		fail(w, op, err)
		return
	}

	performance, err := a.campaignPerformance(ctx, campaignID)
	if err != nil {
		fail(w, op, err)
		return
	}
	if len(performance) == 0 {
		writeError(w, http.StatusNotFound, "No performance data found")
		return
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.Insights]{
		Template: "ad_targeting",
		Context: prompt.Context{
			"performance":           performance,
			"performance_threshold": threshold,
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campaign_id":      campaignID,
		"performance_data": performance,
		"recommendations":  res.Value,
	})
}

// campaignPerformance sums ad_performance rows of the campaign's creatives
// by neighborhood name. Creatives without a neighborhood count as "Unknown".
func (a *API) campaignPerformance(ctx context.Context, campaignID string) (map[string]*models.NeighborhoodPerformance, error) {
	rows, err := a.store.List(ctx, "ad_creatives", store.Query{
		Filters: []store.Filter{store.Eq("campaign_id", campaignID)},
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	creatives := make(map[uuid.UUID]models.AdCreative, len(rows))
	creativeIDs := make([]string, 0, len(rows))
	var neighborhoodIDs []string
	for _, row := range rows {
		c, err := store.Decode[models.AdCreative](row)
		if err != nil {
			return nil, err
		}
		creatives[c.ID] = c
		creativeIDs = append(creativeIDs, c.ID.String())
		if c.NeighborhoodID != nil {
			neighborhoodIDs = append(neighborhoodIDs, c.NeighborhoodID.String())
		}
	}

	names := map[uuid.UUID]string{}
	if len(neighborhoodIDs) > 0 {
		nrows, err := a.store.List(ctx, "neighborhoods", store.Query{
			Filters: []store.Filter{store.In("id", neighborhoodIDs)},
		})
		if err != nil {
			return nil, err
		}
		for _, row := range nrows {
			n, err := store.Decode[models.Neighborhood](row)
			if err != nil {
				return nil, err
			}
			names[n.ID] = n.Name
		}
	}

	prows, err := a.store.List(ctx, "ad_performance", store.Query{
		Filters: []store.Filter{store.In("creative_id", creativeIDs)},
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]*models.NeighborhoodPerformance)
	for _, row := range prows {
		rec, err := store.Decode[models.AdPerformance](row)
		if err != nil {
			return nil, err
		}
		name := "Unknown"
		if c := creatives[rec.CreativeID]; c.NeighborhoodID != nil {
			if n, ok := names[*c.NeighborhoodID]; ok && n != "" {
				name = n
			}
		}
		agg, ok := out[name]
		if !ok {
			agg = &models.NeighborhoodPerformance{}
			out[name] = agg
		}
		agg.Add(rec)
	}
	for _, agg := range out {
		agg.Finish()
	}
	return out, nil
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
