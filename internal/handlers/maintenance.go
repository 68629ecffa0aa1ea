// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// --- Lawn & tree maintenance ---
//
// Watering advice is driven by the rainfall recorded for the zip code over
// the last week. Lawns need about an inch of water per week.

const (
	dateLayout         = "2006-01-02"
	weeklyWaterInches  = 1.0
	defaultTempF       = 75.0
	defaultGrassType   = "Kentucky Bluegrass"
	rainfallWindowDays = 7
	maxRainfallDays    = 365
)

// rainfall returns the weather rows for zip since the given number of days
// ago, and their total precipitation.
func (a *API) rainfall(ctx context.Context, zip string, days int, desc bool) ([]models.WeatherDay, []store.Row, float64, error) {
	since := a.now().AddDate(0, 0, -days).Format(dateLayout)
	rows, err := a.store.List(ctx, "weather_data", store.Query{
		Filters: []store.Filter{store.Eq("zip_code", zip), store.Gte("date", since)},
		OrderBy: "date",
		Desc:    desc,
	})
	if err != nil {
		return nil, nil, 0, err
	}

	out := make([]models.WeatherDay, 0, len(rows))
	var total float64
	for _, row := range rows {
		d, err := store.Decode[models.WeatherDay](row)
		if err != nil {
			return nil, nil, 0, err
		}
		out = append(out, d)
		total += d.PrecipitationInches
	}
	return out, rows, total, nil
}

// WateringRecommendation advises a homeowner on this week's watering and
// stores the schedule.
func (a *API) WateringRecommendation(w http.ResponseWriter, r *http.Request) {
	const op = "Watering recommendation"
	ctx := r.Context()

	var req struct {
		ProspectID string `json:"prospect_id"`
		ZipCode    string `json:"zip_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if strings.TrimSpace(req.ProspectID) == "" {
		fail(w, op, badRequest("prospect_id is required"))
		return
	}
	if strings.TrimSpace(req.ZipCode) == "" {
		fail(w, op, badRequest("zip_code is required"))
		return
	}

	prospect, err := a.fetch(ctx, "prospects", "Prospect", req.ProspectID)
	if err != nil {
		fail(w, op, err)
		return
	}
	nrow, _, err := a.prospectNeighborhood(ctx, prospect)
	if err != nil {
		fail(w, op, err)
		return
	}

	weather, _, total, err := a.rainfall(ctx, req.ZipCode, rainfallWindowDays, false)
	if err != nil {
		fail(w, op, err)
		return
	}
	temp := defaultTempF
	if n := len(weather); n > 0 && weather[n-1].TempHighF != nil {
		temp = *weather[n-1].TempHighF
	}
	daily := make([]map[string]any, 0, len(weather))
	for _, d := range weather {
		day := map[string]any{"date": d.Date, "rainfall": d.PrecipitationInches, "temp": nil}
		if d.TempHighF != nil {
			day["temp"] = *d.TempHighF
		}
		daily = append(daily, day)
	}

	lawns, err := a.store.List(ctx, "lawn_maintenance_schedules", store.Query{
		Filters: []store.Filter{store.Eq("prospect_id", req.ProspectID)},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{
		"prospect":       prospect,
		"zip_code":       req.ZipCode,
		"total_rainfall": total,
		"current_temp":   temp,
		"daily":          daily,
	}
	if nrow != nil {
		pctx["neighborhood"] = nrow
	}
	if len(lawns) > 0 {
		pctx["lawn"] = lawns[0]
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.WateringRecommendation]{
		Template: "watering",
		Context:  pctx,
		Write: func(ctx context.Context, ds store.Datastore, rec models.WateringRecommendation, _ orchestrator.Provenance) (store.Row, error) {
			frequency := rec.GardenWateringFrequency
			if frequency == "" {
				frequency = "as_needed"
			}
			days := rec.LawnWateringDays
			if days == nil {
				days = []string{}
			}
			return ds.Insert(ctx, "watering_schedules", store.Row{
				"prospect_id":                   req.ProspectID,
				"week_starting":                 a.now().Format(dateLayout),
				"lawn_watering_needed":          rec.LawnWateringNeeded,
				"lawn_watering_hours":           float64(rec.LawnWateringHours),
				"lawn_watering_days":            days,
				"garden_watering_needed":        rec.GardenWateringNeeded,
				"garden_watering_frequency":     frequency,
				"trees_watering_needed":         rec.TreesWateringNeeded,
				"trees_watering_recommendation": rec.TreesWateringRecommendation,
				"rainfall_last_7days":           models.Round2(total),
				"ai_recommendation":             rec.Reasoning,
			})
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"recommendation": res.Value,
		"rainfall_7days": models.Round2(total),
	})
}

// GenerateLawnSchedule produces a full-season task list for a lawn and
// stores it for the prospect.
func (a *API) GenerateLawnSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "Lawn schedule generation"
	ctx := r.Context()

	prospectID, err := requireQuery(r, "prospect_id")
	if err != nil {
		fail(w, op, err)
		return
	}
	grassType, err := requireQuery(r, "grass_type")
	if err != nil {
		fail(w, op, err)
		return
	}
	size, err := queryInt(r, "lawn_size_sqft", 0)
	if err != nil {
		fail(w, op, err)
		return
	}
	if size <= 0 {
		fail(w, op, badRequest("lawn_size_sqft must be a positive integer"))
		return
	}

	prospect, err := a.fetch(ctx, "prospects", "Prospect", prospectID)
	if err != nil {
		fail(w, op, err)
		return
	}
	nrow, neighborhood, err := a.prospectNeighborhood(ctx, prospect)
	if err != nil {
		fail(w, op, err)
		return
	}

	pctx := prompt.Context{"grass_type": grassType, "lawn_size_sqft": size}
	if nrow != nil {
		pctx["neighborhood"] = nrow
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.Insights]{
		Template: "lawn_schedule",
		Context:  pctx,
		Write: orchestrator.InsertInto("lawn_maintenance_schedules", func(schedule models.Insights, _ orchestrator.Provenance) store.Row {
			return store.Row{
				"prospect_id":    prospectID,
				"lawn_size_sqft": size,
				"grass_type":     grassType,
				"soil_type":      neighborhood.Soil("loam"),
				"usda_zone":      neighborhood.Zone("5b"),
				"ai_schedule":    schedule,
			}
		}),
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"schedule_id": res.Record.ID(),
		"schedule":    res.Value,
	})
}

// RainfallSummary totals recorded rainfall for a zip code. No model is
// involved.
func (a *API) RainfallSummary(w http.ResponseWriter, r *http.Request) {
	const op = "Rainfall summary"

	zip, err := requireQuery(r, "zip_code")
	if err != nil {
		fail(w, op, err)
		return
	}
	days, err := queryInt(r, "days", rainfallWindowDays)
	if err != nil {
		fail(w, op, err)
		return
	}
	if days < 1 || days > maxRainfallDays {
		fail(w, op, badRequest("days must be between 1 and %d", maxRainfallDays))
		return
	}

	_, rows, total, err := a.rainfall(r.Context(), zip, days, true)
	if err != nil {
		fail(w, op, err)
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"zip_code":              zip,
		"days":                  days,
		"total_rainfall_inches": models.Round2(total),
		"daily_data":            rows,
		"watering_needed":       total < weeklyWaterInches,
	})
}

type assessmentRequest struct {
	Address          string `json:"address"`
	MowOwnLawn       *bool  `json:"mow_own_lawn"`
	FertilizeOwnLawn *bool  `json:"fertilize_own_lawn"`
	AerateOwnLawn    *bool  `json:"aerate_own_lawn"`
	WeedControlOwn   *bool  `json:"weed_control_own"`
	HaveGarden       bool   `json:"have_garden"`
	HaveTrees        bool   `json:"have_trees"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
}

func (req *assessmentRequest) validate() error {
	if err := checkText("address", req.Address, maxTextLen); err != nil {
		return err
	}
	if err := checkText("email", req.Email, maxTextLen); err != nil {
		return err
	}
	answers := []struct {
		field string
		v     *bool
	}{
		{"mow_own_lawn", req.MowOwnLawn},
		{"fertilize_own_lawn", req.FertilizeOwnLawn},
		{"aerate_own_lawn", req.AerateOwnLawn},
		{"weed_control_own", req.WeedControlOwn},
	}
	for _, a := range answers {
		if a.v == nil {
			return badRequest("%s is required", a.field)
		}
	}
	return nil
}

// AssessProperty splits lawn care into what the homeowner does and what
// they need a service for, and records a lead.
func (a *API) AssessProperty(w http.ResponseWriter, r *http.Request) {
	const op = "Property assessment"
	ctx := r.Context()

	var req assessmentRequest
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
		Source:  "property_assessment",
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

	grass := defaultGrassType
	if nrow != nil {
		if types, ok := nrow["common_grass_types"].([]any); ok && len(types) > 0 {
			if s, ok := types[0].(string); ok && s != "" {
				grass = s
			}
		}
	}

	pctx := prompt.Context{
		"address":            req.Address,
		"grass_type":         grass,
		"mow_own_lawn":       *req.MowOwnLawn,
		"fertilize_own_lawn": *req.FertilizeOwnLawn,
		"aerate_own_lawn":    *req.AerateOwnLawn,
		"weed_control_own":   *req.WeedControlOwn,
	}
	if nrow != nil {
		pctx["neighborhood"] = nrow
	}

	res, err := orchestrator.Run(ctx, a.orch, orchestrator.Job[models.Insights]{
		Template: "property_assessment",
		Context:  pctx,
		Write: orchestrator.InsertInto("leads", func(models.Insights, orchestrator.Provenance) store.Row {
			return store.Row{
				"prospect_id": prospect.ID(),
				"source":      "property_assessment",
				"status":      "new",
				"email":       req.Email,
				"phone":       req.Phone,
				"notes": fmt.Sprintf("Assessment: DIY mowing=%t, fertilize=%t, aerate=%t",
					*req.MowOwnLawn, *req.FertilizeOwnLawn, *req.AerateOwnLawn),
			}
		}),
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"recommendations": res.Value,
		"neighborhood_data": map[string]string{
			"grass_type": grass,
			"soil_type":  neighborhood.Soil("loam"),
			"usda_zone":  neighborhood.Zone("5b"),
		},
	})
}
