package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"verdant/internal/ai"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes {"detail": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// requestError is a client mistake caught before any work is done.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// fail maps err to a status code and writes it. op names the operation in
// 500 responses, e.g. "Lead scoring".
func fail(w http.ResponseWriter, op string, err error) {
	var (
		notFound *orchestrator.NotFoundError
		reqErr   *requestError
		invalid  *prompt.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, ai.ErrInvalidTemperature):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s failed: %v", op, err))
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("Request body is required")
		}
		return badRequest("Invalid request body: %v", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return n, nil
}

// queryFloat parses an optional number query parameter.
func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("%s must be a number", key)
	}
	return f, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be true or false", key)
	}
	return b, nil
}

// requireQuery returns a required query parameter.
func requireQuery(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", badRequest("%s is required", key)
	}
	return v, nil
}
