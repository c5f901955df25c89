package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", fmt.Errorf("%w: missing itemId", ErrValidation), "VALIDATION_ERROR", http.StatusBadRequest},
		{"read only", ErrReadOnly, "READ_ONLY_VIOLATION", http.StatusForbidden},
		{"contention", fmt.Errorf("upsert: %w", ErrStorageContention), "STORAGE_CONTENTION", http.StatusServiceUnavailable},
		{"fault", fmt.Errorf("%w: %w", ErrStorageFault, errors.New("disk I/O error")), "STORAGE_FAULT", http.StatusInternalServerError},
		{"not found", ErrProductNotFound, "PRODUCT_NOT_FOUND", http.StatusNotFound},
		{"upstream", fmt.Errorf("%w: 502", ErrUpstream), "UPSTREAM_ERROR", http.StatusBadGateway},
		{"canceled", fmt.Errorf("%w: query: %w", ErrRequestCanceled, errors.New("context canceled")), "REQUEST_CANCELED", StatusClientClosedRequest},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
