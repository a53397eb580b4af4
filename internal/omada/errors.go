package omada

import (
	"errors"
	"fmt"
)

// Controller errors
var (
	ErrControllerInfo   = errors.New("failed to read controller info")
	ErrLoginFailed      = errors.New("controller login failed")
	ErrSiteNotFound     = errors.New("site not found")
	ErrRequestFailed    = errors.New("controller request failed")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Port errors
var (
	ErrPortNotFound = errors.New("switch port not found")
	ErrNoOverrides  = errors.New("no port overrides set")
)

// errorCodeSessionExpired is returned by the controller when the login
// session or CSRF token is no longer valid.
const errorCodeSessionExpired = -1200

// APIError is a non-zero errorCode returned in a controller response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("omada error %d: %s", e.Code, e.Message)
}
