package utils

import (
	"errors"
	"net/http"
)

// Common application errors used across services. The text of each error is
// its stable symbolic code, so callers can render it without parsing messages.
var (
	ErrValidation         = errors.New("VALIDATION_ERROR")
	ErrReadOnly           = errors.New("READ_ONLY_VIOLATION")
	ErrStorageContention  = errors.New("STORAGE_CONTENTION")
	ErrStorageFault       = errors.New("STORAGE_FAULT")
	ErrProductNotFound    = errors.New("PRODUCT_NOT_FOUND")
	ErrUpstream           = errors.New("UPSTREAM_ERROR")
	ErrInvalidRequest     = errors.New("INVALID_REQUEST")
	ErrUpstreamNotEnabled = errors.New("UPSTREAM_NOT_CONFIGURED")
	ErrRequestCanceled    = errors.New("REQUEST_CANCELED")
)

// StatusClientClosedRequest is reported when the caller gave up first.
const StatusClientClosedRequest = 499

var errorStatus = []struct {
	err    error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrInvalidRequest, http.StatusBadRequest},
	{ErrReadOnly, http.StatusForbidden},
	{ErrProductNotFound, http.StatusNotFound},
	{ErrStorageContention, http.StatusServiceUnavailable},
	{ErrUpstreamNotEnabled, http.StatusServiceUnavailable},
	{ErrUpstream, http.StatusBadGateway},
	{ErrStorageFault, http.StatusInternalServerError},
	{ErrRequestCanceled, StatusClientClosedRequest},
}

// ErrorCode returns the symbolic code for err, or INTERNAL_ERROR when err
// does not wrap any known application error.
func ErrorCode(err error) string {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus maps err onto the status code the API layer responds with.
func HTTPStatus(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
