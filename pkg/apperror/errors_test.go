package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"anoa.com/ulike/pkg/apperror"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: apperror.ErrNotFound, want: http.StatusNotFound},
		{name: "wrapped unauthorized", err: fmt.Errorf("token: %w", apperror.ErrUnauthorized), want: http.StatusUnauthorized},
		{name: "invalid input", err: apperror.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "rate limit", err: apperror.ErrRateLimitExceeded, want: http.StatusTooManyRequests},
		{name: "conflict", err: apperror.ErrConflict, want: http.StatusConflict},
		{name: "unavailable", err: apperror.ErrUnavailable, want: http.StatusServiceUnavailable},
		{name: "app error code wins", err: apperror.New(http.StatusTeapot, "tea", apperror.ErrNotFound), want: http.StatusTeapot},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, apperror.MapErrorToStatus(tt.err))
		})
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "internal server error", apperror.PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "service unavailable", apperror.PublicMessage(fmt.Errorf("retries: %w", apperror.ErrUnavailable)))
	assert.Equal(t, "custom", apperror.PublicMessage(apperror.New(http.StatusBadRequest, "custom", nil)))
	assert.Equal(t, "resource not found", apperror.PublicMessage(apperror.ErrNotFound))
}
