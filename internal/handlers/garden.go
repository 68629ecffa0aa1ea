// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

type gardenPlanRequest struct {
	Address            string   `json:"address"`
	PrimaryGoal        []string `json:"primary_goal"`
	TimeCommitment     string   `json:"time_commitment"`
	ExperienceLevel    string   `json:"experience_level"`
	GardenSize         string   `json:"garden_size"`
	HarvestPreferences []string `json:"harvest_preferences"`
	FavoriteRecipes    string   `json:"favorite_recipes,omitempty"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone,omitempty"`
}

func (req *gardenPlanRequest) validate() error {
	if err := checkText("address", req.Address, maxTextLen); err != nil {
		return err
	}
	if err := checkText("email", req.Email, maxTextLen); err != nil {
		return err
	}
	if len(req.PrimaryGoal) == 0 {
		return badRequest("primary_goal is required")
	}
	if len(req.HarvestPreferences) == 0 {
		return badRequest("harvest_preferences is required")
	}
	if len(req.PrimaryGoal) > maxListLen || len(req.HarvestPreferences) > maxListLen {
		return badRequest("too many list entries (max %d)", maxListLen)
	}
	if err := checkEnum("time_commitment", req.TimeCommitment, models.TimeCommitments); err != nil {
		return err
	}
	if err := checkEnum("experience_level", req.ExperienceLevel, models.ExperienceLevels); err != nil {
		return err
	}
	return checkEnum("garden_size", req.GardenSize, models.GardenSizes)
}

// GeneratePersonalizedPlan builds a vegetable garden plan from the
// questionnaire, stores it for the homeowner's prospect and records a lead.
func (a *API) GeneratePersonalizedPlan(w http.ResponseWriter, r *http.Request) {
	const op = "Garden plan generation"
	ctx := r.Context()

	var req gardenPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		fail(w, op, err)
		return
	}

	prospect, err := a.findOrCreateProspect(ctx, prospectContact{
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
		Source:  "garden_planner",
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	nrow, neighborhood, err := a.prospectNeighborhood(ctx, prospect)
	if err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{
		"address":             req.Address,
		"primary_goal":        req.PrimaryGoal,
		"time_commitment":     req.TimeCommitment,
		"experience_level":    req.ExperienceLevel,
		"garden_size":         req.GardenSize,
		"harvest_preferences": req.HarvestPreferences,
		"favorite_recipes":    req.FavoriteRecipes,
	}
	if nrow != nil {
		pctx["neighborhood"] = nrow
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.Insights]{
		Template: "garden_plan",
		Context:  pctx,
		Write: func(ctx context.Context, ds store.Datastore, plan models.Insights, _ orchestrator.Provenance) (store.Row, error) {
			saved, err := ds.Insert(ctx, "garden_plans", store.Row{
				"prospect_id":       prospect.ID(),
				"year":              a.now().Year(),
				"usda_zone":         neighborhood.Zone("5b"),
				"ai_generated_plan": plan,
			})
			if err != nil {
				return nil, err
			}
			_, err = ds.Insert(ctx, "leads", store.Row{
				"prospect_id": prospect.ID(),
				"source":      "garden_planner",
				"status":      "new",
				"email":       req.Email,
				"phone":       req.Phone,
				"notes": fmt.Sprintf("Created garden plan. Goals: %s. Experience: %s.",
					strings.Join(req.PrimaryGoal, ", "), req.ExperienceLevel),
			})
			if err != nil {
				return nil, err
			}
			return saved, nil
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Garden plan generated successfully!",
		"garden_plan_id": res.Record.ID(),
		"plan":           res.Value,
	})
}

// GetGardenPlan returns one stored plan.
func (a *API) GetGardenPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := a.fetch(r.Context(), "garden_plans", "Garden plan", chi.URLParam(r, "planID"))
	if err != nil {
		fail(w, "Garden plan lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// MyGardenPlans lists the plans of the prospect with the given email,
// newest first.
func (a *API) MyGardenPlans(w http.ResponseWriter, r *http.Request) {
	const op = "Garden plan lookup"

	email, err := requireQuery(r, "email")
	if err != nil {
		fail(w, op, err)
		return
	}

	prospects, err := a.store.List(r.Context(), "prospects", store.Query{
		Filters: []store.Filter{store.Eq("email", email)},
		OrderBy: "created_at",
		Limit:   1,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	if len(prospects) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"plans": []store.Row{}})
		return
	}

	plans, err := a.store.List(r.Context(), "garden_plans", store.Query{
		Filters: []store.Filter{store.Eq("prospect_id", prospects[0].ID())},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	if plans == nil {
		plans = []store.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}
