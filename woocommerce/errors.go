package woocommerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured is returned by New when the store URL or credentials
	// are missing.
	ErrNotConfigured = errors.New("WooCommerce API credentials not configured")
	// ErrUnreachable wraps transport failures.
	ErrUnreachable = errors.New("unable to connect to your WooCommerce store, check the store URL and your connection")
)

// APIError is a non-2xx response from the store.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Code       string // WooCommerce error code, e.g. woocommerce_rest_product_invalid_id
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// newAPIError maps a failed response to the message shown to the operator.
func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &APIError{Method: method, Endpoint: endpoint, StatusCode: status, Code: payload.Code}
	switch {
	case status == http.StatusUnauthorized:
		e.Message = "Authentication failed. Please check your API credentials."
	case status == http.StatusForbidden:
		e.Message = "Access forbidden. Please check your API key permissions."
	case status == http.StatusNotFound:
		e.Message = "WooCommerce REST API not found. Please ensure WooCommerce is installed and the REST API is enabled."
	case status == http.StatusInternalServerError:
		e.Message = "Server error. Please check your WooCommerce store."
	case payload.Message != "":
		e.Message = payload.Message
	case payload.Code != "":
		e.Message = fmt.Sprintf("API Error: %s", payload.Code)
	default:
		e.Message = fmt.Sprintf("API request failed with status %d", status)
	}
	return e
}
