package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError represents an error response from the brokerage API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Errors     []string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, msg)
}

// IsNotFound returns true if the error is a 404 Not Found.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized returns true if the error is a 401 Unauthorized.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// AllMessages returns the top-level message plus every nested error
// message, in the order the API sent them.
func (e *APIError) AllMessages() []string {
	var msgs []string
	if e.Message != "" {
		msgs = append(msgs, e.Message)
	}
	return append(msgs, e.Errors...)
}

// errorResponse is the JSON structure of API error bodies:
// {"error": {"code": ..., "message": ..., "errors": [{"message"|"reason"}]}}
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// CheckResponse checks the API response for errors. If the status code
// indicates an error (>= 400), it parses the error body and returns an
// APIError. Otherwise, returns nil.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		// Body is not JSON, ignore parsing error
		return apiErr
	}

	apiErr.Code = errResp.Error.Code
	apiErr.Message = errResp.Error.Message
	for _, nested := range errResp.Error.Errors {
		msg := nested.Message
		if msg == "" {
			msg = nested.Reason
		}
		if msg != "" {
			apiErr.Errors = append(apiErr.Errors, msg)
		}
	}

	return apiErr
}
