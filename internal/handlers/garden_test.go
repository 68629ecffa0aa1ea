// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"verdant/internal/store"
)

const gardenPlanReply = `{
	"garden_summary": "A compact salsa garden.",
	"plant_recommendations": [
		{"plant": "Tomato", "variety": "Celebrity", "quantity": 4},
		{"plant": "Jalapeno", "quantity": 2}
	],
	"garden_layout": {"beds": 2},
	"shopping_list": ["compost", "stakes"],
	"beginner_tips": ["Water at the base."]
}`

func gardenPlanBody() map[string]any {
	return map[string]any{
		"address":             "42 Oak Ridge Dr, Madison",
		"primary_goal":        []string{"fresh salsa", "save money"},
		"time_commitment":     "moderate",
		"experience_level":    "beginner",
		"garden_size":         "small",
		"harvest_preferences": []string{"tomatoes", "peppers"},
		"email":               "pat@example.com",
		"phone":               "608-555-0100",
	}
}

func TestGeneratePersonalizedPlan_NewProspect(t *testing.T) {
	env := newTestEnv(t)
	env.OpenAI.Reply(gardenPlanReply)

	rec := serve(env.API.GeneratePersonalizedPlan, request(t, http.MethodPost, "/api/garden/generate-personalized-plan", gardenPlanBody()))
	wantStatus(t, rec, http.StatusOK)

	body := decode(t, rec)
	if body["success"] != true || body["message"] != "Garden plan generated successfully!" {
		t.Errorf("response: got %v", body)
	}

	prospects := env.Store.Rows("prospects")
	if len(prospects) != 1 {
		t.Fatalf("prospects: got %d, want 1", len(prospects))
	}
	prospect := prospects[0]
	if prospect.String("source") != "garden_planner" || prospect.String("contact_status") != "engaged" {
		t.Errorf("prospect: got %v", prospect)
	}

	plans := env.Store.Rows("garden_plans")
	if len(plans) != 1 {
		t.Fatalf("garden_plans: got %d, want 1", len(plans))
	}
	plan := plans[0]
	if plan.ID() != body["garden_plan_id"] {
		t.Errorf("garden_plan_id: got %v, stored %s", body["garden_plan_id"], plan.ID())
	}
	if plan.String("prospect_id") != prospect.ID() {
		t.Errorf("plan prospect_id: got %q", plan.String("prospect_id"))
	}
	if plan.Float("year") != 2026 {
		t.Errorf("year: got %v, want 2026", plan["year"])
	}
	if plan.String("usda_zone") != "5b" {
		t.Errorf("usda_zone: got %q, want the 5b fallback", plan.String("usda_zone"))
	}

	leads := env.Store.Rows("leads")
	if len(leads) != 1 {
		t.Fatalf("leads: got %d, want 1", len(leads))
	}
	wantNotes := "Created garden plan. Goals: fresh salsa, save money. Experience: beginner."
	if leads[0].String("notes") != wantNotes {
		t.Errorf("notes: got %q, want %q", leads[0].String("notes"), wantNotes)
	}
	if leads[0].String("source") != "garden_planner" || leads[0].String("status") != "new" {
		t.Errorf("lead: got %v", leads[0])
	}
}

func TestGeneratePersonalizedPlan_ExistingProspect(t *testing.T) {
	env := newTestEnv(t)
	env.OpenAI.Reply(gardenPlanReply)
	neighborhood := env.seed("neighborhoods", store.Row{
		"name":                "Oak Ridge",
		"usda_hardiness_zone": "5a",
		"soil_type":           "clay-loam",
	})
	prospect := env.seed("prospects", store.Row{
		"street_address":  "42 OAK RIDGE DR, MADISON, WI 53711",
		"neighborhood_id": neighborhood,
	})

	rec := serve(env.API.GeneratePersonalizedPlan, request(t, http.MethodPost, "/api/garden/generate-personalized-plan", gardenPlanBody()))
	wantStatus(t, rec, http.StatusOK)

	if n := len(env.Store.Rows("prospects")); n != 1 {
		t.Errorf("prospects: got %d, want the existing one reused", n)
	}
	plan := env.Store.Rows("garden_plans")[0]
	if plan.String("prospect_id") != prospect {
		t.Errorf("prospect_id: got %q, want %q", plan.String("prospect_id"), prospect)
	}
	if plan.String("usda_zone") != "5a" {
		t.Errorf("usda_zone: got %q, want the neighborhood zone", plan.String("usda_zone"))
	}
	if !strings.Contains(userPrompt(env.OpenAI.Requests()[0]), "clay-loam") {
		t.Error("prompt should carry the neighborhood soil")
	}
}

func TestGeneratePersonalizedPlan_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"time commitment", "time_commitment", "weekends"},
		{"experience level", "experience_level", "guru"},
		{"garden size", "garden_size", "farm"},
		{"no goals", "primary_goal", []string{}},
		{"no email", "email", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := gardenPlanBody()
			body[tt.field] = tt.value

			rec := serve(env.API.GeneratePersonalizedPlan, request(t, http.MethodPost, "/api/garden/generate-personalized-plan", body))
			wantStatus(t, rec, http.StatusBadRequest)
			wantDetail(t, rec, tt.field)

			if env.calls() != 0 || env.Store.Writes() != 0 {
				t.Error("invalid requests must not reach the model or the store")
			}
		})
	}
}

func TestGeneratePersonalizedPlan_ModelFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	env.OpenAI.Reply(`{"garden_summary": "incomplete"}`)

	rec := serve(env.API.GeneratePersonalizedPlan, request(t, http.MethodPost, "/api/garden/generate-personalized-plan", gardenPlanBody()))
	wantStatus(t, rec, http.StatusInternalServerError)

	if n := len(env.Store.Rows("garden_plans")); n != 0 {
		t.Errorf("garden_plans: got %d, want 0", n)
	}
	if n := len(env.Store.Rows("leads")); n != 0 {
		t.Errorf("leads: got %d, want 0", n)
	}
}

func TestGetGardenPlan(t *testing.T) {
	env := newTestEnv(t)
	id := env.seed("garden_plans", store.Row{"year": 2026, "usda_zone": "5b", "ai_generated_plan": map[string]any{"garden_summary": "Herbs"}})

	rec := serve(env.API.GetGardenPlan, request(t, http.MethodGet, "/api/garden/plans/"+id, nil, "planID", id))
	wantStatus(t, rec, http.StatusOK)

	body := decode(t, rec)
	if body["id"] != id {
		t.Errorf("id: got %v", body["id"])
	}
	if plan, _ := body["ai_generated_plan"].(map[string]any); plan["garden_summary"] != "Herbs" {
		t.Errorf("ai_generated_plan: got %v", body["ai_generated_plan"])
	}

	rec = serve(env.API.GetGardenPlan, request(t, http.MethodGet, "/api/garden/plans/"+missingID, nil, "planID", missingID))
	wantStatus(t, rec, http.StatusNotFound)
	wantDetail(t, rec, "Garden plan not found")
}

func TestMyGardenPlans(t *testing.T) {
	env := newTestEnv(t)
	prospect := env.seed("prospects", store.Row{"street_address": "9 Birch Ln", "email": "sky@example.com"})
	env.Store.Seed("garden_plans",
		store.Row{"prospect_id": prospect, "year": 2025, "created_at": "2025-04-01T00:00:00Z"},
		store.Row{"prospect_id": prospect, "year": 2026, "created_at": "2026-04-01T00:00:00Z"},
		store.Row{"prospect_id": missingID, "year": 2026, "created_at": "2026-04-02T00:00:00Z"},
	)

	rec := serve(env.API.MyGardenPlans, request(t, http.MethodGet, "/api/garden/my-plans?email="+url.QueryEscape("sky@example.com"), nil))
	wantStatus(t, rec, http.StatusOK)

	plans, _ := decode(t, rec)["plans"].([]any)
	if len(plans) != 2 {
		t.Fatalf("plans: got %d, want 2", len(plans))
	}
	if first, _ := plans[0].(map[string]any); first["year"] != float64(2026) {
		t.Errorf("plans should be newest first, got %v", plans)
	}
}

func TestMyGardenPlans_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := serve(env.API.MyGardenPlans, request(t, http.MethodGet, "/api/garden/my-plans?email=nobody%40example.com", nil))
	wantStatus(t, rec, http.StatusOK)

	plans, ok := decode(t, rec)["plans"].([]any)
	if !ok || len(plans) != 0 {
		t.Errorf("plans: want an empty list, got %v", plans)
	}
}

func TestMyGardenPlans_MissingEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := serve(env.API.MyGardenPlans, request(t, http.MethodGet, "/api/garden/my-plans", nil))
	wantStatus(t, rec, http.StatusBadRequest)
	wantDetail(t, rec, "email is required")
}
