package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"verdant/internal/models"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
)

// historyLimit is how many recent jobs and invoices inform a churn
// prediction.
const historyLimit = 10

// PredictChurn estimates how likely a customer is to leave, from their
// recent jobs and invoices.
func (a *API) PredictChurn(w http.ResponseWriter, r *http.Request) {
	const op = "Churn prediction"

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

	jobs, err := a.store.List(r.Context(), "jobs", store.Query{
		Filters: []store.Filter{store.Eq("customer_id", customerID)},
		OrderBy: "scheduled_date",
		Desc:    true,
		Limit:   historyLimit,
	})
	if err != nil {
		fail(w, op, err)
		return
	}
	invoices, err := a.store.List(r.Context(), "invoices", store.Query{
		Filters: []store.Filter{store.Eq("customer_id", customerID)},
		OrderBy: "issue_date",
		Desc:    true,
		Limit:   historyLimit,
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	statuses := []string{}
	for i, inv := range invoices {
		if i == 3 {
			break
		}
		statuses = append(statuses, inv.String("status"))
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "churn_prediction",
		Context: prompt.Context{
			"customer":         customer,
			"jobs":             jobs,
			"invoices":         invoices,
			"payment_statuses": statuses,
		},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customer_id": customerID,
		"prediction":  res.Value,
		"model":       res.Provenance.Model,
	})
}

// ForecastDemand forecasts monthly job volume.
func (a *API) ForecastDemand(w http.ResponseWriter, r *http.Request) {
	const op = "Demand forecasting"

	months, err := queryInt(r, "months_ahead", 3)
	if err != nil {
		fail(w, op, err)
		return
	}
	if months < 1 || months > 24 {
		fail(w, op, badRequest("months_ahead must be between 1 and 24"))
		return
	}

	jobs, err := a.store.List(r.Context(), "jobs", store.Query{})
	if err != nil {
		fail(w, op, err)
		return
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "demand_forecast",
		Context:  prompt.Context{"months_ahead": months, "job_count": len(jobs)},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"months_ahead": months,
		"forecast":     res.Value,
		"model":        res.Provenance.Model,
	})
}

// NeighborhoodInsights assesses a neighborhood as a market.
func (a *API) NeighborhoodInsights(w http.ResponseWriter, r *http.Request) {
	const op = "Neighborhood insights generation"
	id := chi.URLParam(r, "neighborhoodID")

	neighborhood, err := a.fetch(r.Context(), "neighborhoods", "Neighborhood", id)
	if err != nil {
		fail(w, op, err)
		return
	}

	res, err := orchestrator.Run(r.Context(), a.orch, orchestrator.Job[models.Insights]{
		Template: "neighborhood_insights",
		Context:  prompt.Context{"neighborhood": neighborhood},
	})
	if err != nil {
		fail(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"neighborhood_id":   id,
		"neighborhood_name": neighborhood.String("name"),
		"insights":          res.Value,
		"model":             res.Provenance.Model,
	})
}
