package handlers

import (
	"context"
	"net/http"
	"strings"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// AnalyzeProperty produces a landscaping assessment of a property and
// records the condition and full analysis on the property row.
func (a *API) AnalyzeProperty(w http.ResponseWriter, r *http.Request) {
	const op = "Property analysis"

	var req struct {
		PropertyID   string `json:"property_id"`
		AnalysisType string `json:"analysis_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(w, op, err)
		return
	}
	if strings.TrimSpace(req.PropertyID) == "" {
		fail(w, op, badRequest("property_id is required"))
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = "full"
	}
	if err := checkEnum("analysis_type", req.AnalysisType, models.AnalysisTypes); err != nil {
		fail(w, op, err)
		return
	}

	property, err := a.fetch(r.Context(), "properties", "Property", req.PropertyID)
	if err != nil {
		fail(w, op, err)
		return
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.PropertyAnalysis]{
		Template: "property_analysis",
		Context:  prompt.Context{"property": property, "analysis_type": req.AnalysisType},
		Write: func(ctx context.Context, ds store.Datastore, analysis models.PropertyAnalysis, _ orchestrator.Provenance) (store.Row, error) {
			features, err := store.ToRow(analysis)
			if err != nil {
				return nil, err
			}
			rows, err := ds.Update(ctx, "properties", store.Row{
				"property_condition": analysis.PropertyCondition,
				"detected_features":  features,
			}, store.ByID(req.PropertyID))
			if err != nil || len(rows) == 0 {
				return nil, err
			}
			return rows[0], nil
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"property_id": req.PropertyID,
		"analysis":    res.Value,
		"model":       res.Provenance.Model,
	})
}

// EstimateLawnArea estimates lawn area as half of the lot not covered by
// the building. No model is involved.
func (a *API) EstimateLawnArea(w http.ResponseWriter, r *http.Request) {
	const op = "Lawn area estimation"

	propertyID, err := requireQuery(r, "property_id")
	if err != nil {
		fail(w, op, err)
		return
	}
	row, err := a.fetch(r.Context(), "properties", "Property", propertyID)
	if err != nil {
		fail(w, op, err)
		return
	}
	p, err := store.Decode[models.Property](row)
	if err != nil {
		fail(w, op, err)
		return
	}

	var lot, building float64
	if p.LotSizeSqft != nil {
		lot = *p.LotSizeSqft
	}
	if p.BuildingAreaSqft != nil {
		building = *p.BuildingAreaSqft
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"property_id":              propertyID,
		"lot_size_sqft":            lot,
		"building_area_sqft":       building,
		"estimated_lawn_area_sqft": models.Round2((lot - building) * 0.5),
		"note":                     "This is a basic estimation. For accurate measurements, consider aerial image analysis.",
	})
}
