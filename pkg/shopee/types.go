package shopee

import (
	"encoding/json"
	"fmt"
)

// GraphQLRequest is the POST body of every call.
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse is the response envelope.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is one entry of the errors array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"extensions"`
}

// PageInfo describes the page returned by productOfferV2.
type PageInfo struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
}

// APIError is returned for non-200 responses and GraphQL errors.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("shopee: %s (code %d, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("shopee: %s (status %d)", e.Message, e.StatusCode)
}
