package handlers

import (
	"strings"
	"time"
	"unicode/utf8"

	"verdant/internal/ai"
	"verdant/internal/models"
)

// Validation limits for free-text request fields.
const (
	maxTextLen   = 8_000
	maxPromptLen = 32_000
	maxListLen   = 50
	maxLimit     = 50
)

// MaxBatchSize caps the leads scored by one batch request. Each lead is one
// model call.
const MaxBatchSize = 20

// BatchTimeout is how long a batch may run. Leads not reached by then are
// reported as failed. The server's write timeout must exceed it.
const BatchTimeout = MaxBatchSize * ai.RequestTimeout

// MinWriteTimeout is the write timeout that lets a full batch answer.
const MinWriteTimeout = BatchTimeout + 30*time.Second

// checkEnum rejects v when it is not one of allowed.
func checkEnum(field, v string, allowed []string) error {
	if !models.OneOf(v, allowed) {
		return badRequest("%s must be one of: %s", field, strings.Join(allowed, ", "))
	}
	return nil
}

// checkEnums rejects any element of vs that is not one of allowed.
func checkEnums(field string, vs []string, allowed []string) error {
	for _, v := range vs {
		if err := checkEnum(field, v, allowed); err != nil {
			return err
		}
	}
	return nil
}

// checkText rejects blank or oversized text.
func checkText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return badRequest("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return badRequest("%s is too long (max %d characters)", field, max)
	}
	return nil
}

// checkLimit bounds a result count.
func checkLimit(field string, n int) error {
	if n < 1 || n > maxLimit {
		return badRequest("%s must be between 1 and %d", field, maxLimit)
	}
	return nil
}
