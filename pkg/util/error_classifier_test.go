package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error
	if err := json.Unmarshal([]byte("{"), &struct{}{}); err != nil {
		syntaxErr = err
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"json syntax", syntaxErr, false, "json_decode_error"},
		{"no rows", fmt.Errorf("load email: %w", pgx.ErrNoRows), false, "email_not_found"},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint`), false, "duplicate_key"},
		{"db connection", errors.New("failed to acquire connection"), true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"assist 5xx", errors.New("assist service returned 5xx: 503"), true, "assist_service_error"},
		{"assist unreachable", errors.New("failed to call assist service: dial tcp"), true, "assist_service_unavailable"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			if retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", retryable, tt.retryable)
			}
			if errType != tt.errType {
				t.Errorf("errType = %q, want %q", errType, tt.errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 5, false) {
		t.Error("non-retryable error must never retry")
	}
	if !ShouldRetry(5, 5, true) {
		t.Error("retry at the limit should still run")
	}
	if ShouldRetry(6, 5, true) {
		t.Error("retry past the limit must stop")
	}
}
