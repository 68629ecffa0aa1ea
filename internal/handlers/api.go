// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the Verdant AI service.
// Handlers are grouped by concern (ai, leads, properties, content,
// analytics, ads, garden, maintenance) and receive their dependencies
// through the API struct.
package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"verdant/internal/ai"
	"verdant/internal/orchestrator"
	"verdant/internal/store"
)

// API groups all JSON endpoints and their dependencies.
type API struct {
	orch     *orchestrator.Orchestrator
	store    store.Datastore
	registry *ai.Registry
	now      func() time.Time

	batchTimeout time.Duration
}

// NewAPI creates the handler group. The orchestrator carries the datastore
// and the model registry.
func NewAPI(orch *orchestrator.Orchestrator) *API {
	return &API{
		orch:     orch,
		store:    orch.Store(),
		registry: orch.Registry(),
		now:      time.Now,

		batchTimeout: BatchTimeout,
	}
}

// model returns the requested model, or the configured one for backend.
func (a *API) model(requested, backend string) string {
	if requested != "" {
		return requested
	}
	return a.orch.ModelFor(backend)
}

// fetch loads the row of entity with the given id. An id that is not a UUID
// cannot exist and is reported as not found without a query.
func (a *API) fetch(ctx context.Context, table, entity, id string) (store.Row, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &orchestrator.NotFoundError{Entity: entity, ID: id}
	}
	return a.orch.Fetch(ctx, table, entity, store.ByID(id))
}
