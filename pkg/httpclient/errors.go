package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

// envelope mirrors the failure shape of httputil.Response.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError that preserves the server's code, message and status.
// Bodies that are not a failure envelope produce a plain error carrying the
// status and the raw body.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var env envelope
	if json.Unmarshal(bodyBytes, &env) == nil && env.Success != nil && !*env.Success && env.Message != "" {
		return mapError(resp.StatusCode, env.Code, env.Message)
	}

	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
}

func mapError(status int, code, message string) error {
	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = apperrors.ErrNotFound
	case status == http.StatusBadRequest:
		sentinel = apperrors.ErrInvalidInput
	case status == http.StatusConflict:
		sentinel = apperrors.ErrConflict
	case status == http.StatusUnauthorized:
		sentinel = apperrors.ErrUnauthorized
	case status == http.StatusForbidden:
		sentinel = apperrors.ErrForbidden
	case status == http.StatusTooManyRequests:
		sentinel = apperrors.ErrTooManyRequests
	case status == http.StatusServiceUnavailable:
		sentinel = apperrors.ErrServiceUnavail
	case status >= 500:
		return fmt.Errorf("server error (%d/%s): %s", status, code, message)
	}
	if code == "" {
		code = http.StatusText(status)
	}
	return apperrors.New(status, code, message, sentinel)
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
