// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Handlers run against the in-memory datastore and scripted model backends,
// so no database or API key is needed.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"verdant/internal/ai"
	"verdant/internal/ai/aitest"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/store"
	"verdant/internal/store/memstore"
)

// testNow is the fixed clock used by every handler test.
var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	API    *API
	Store  *memstore.Store
	OpenAI *aitest.Backend
	Claude *aitest.Backend
}

// newTestEnv creates a complete test environment. Both backends start with
// no scripted replies; tests add them with Reply.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompt.Default: %v", err)
	}

	openai := aitest.New(ai.OpenAI, true)
	claude := aitest.New(ai.Claude, false)
	ds := memstore.New()

	orch := orchestrator.New(catalog, aitest.Registry(openai, claude), ds, orchestrator.Options{
		Models: map[string]string{
			ai.OpenAI: "gpt-4",
			ai.Claude: "claude-3-5-sonnet-20241022",
		},
		EmbeddingModel: "text-embedding-3-small",
	})

	api := NewAPI(orch)
	api.now = func() time.Time { return testNow }

	return &testEnv{API: api, Store: ds, OpenAI: openai, Claude: claude}
}

// calls returns the number of completion calls across both backends.
func (env *testEnv) calls() int {
	return env.OpenAI.Calls() + env.Claude.Calls()
}

// seed inserts one row and returns its id.
func (env *testEnv) seed(table string, row store.Row) string {
	return env.Store.Seed(table, row)[0].ID()
}

// request builds a request with an optional JSON body and chi URL params
// given as name, value pairs.
func request(t *testing.T, method, target string, body any, params ...string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

// serve runs handler and returns the recorder.
func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// decode parses a JSON response body into a map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// wantStatus fails the test when the response has another status.
func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: got %d, want %d (body: %s)", rec.Code, status, rec.Body.String())
	}
}

// wantDetail checks the {"detail": ...} error body.
func wantDetail(t *testing.T, rec *httptest.ResponseRecorder, contains string) {
	t.Helper()
	detail, _ := decode(t, rec)["detail"].(string)
	if !strings.Contains(detail, contains) {
		t.Errorf("detail: got %q, want it to contain %q", detail, contains)
	}
}

// userPrompt returns the text of the last message sent to a model.
func userPrompt(req ai.Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

// missingID is a well-formed id that no seeded row uses.
const missingID = "00000000-0000-4000-8000-000000000000"
