package coordinator

import "errors"

var (
	ErrAlreadyStarted  = errors.New("coordinator already started")
	ErrInvalidInterval = errors.New("poll interval must be positive")
	ErrNoData          = errors.New("coordinator has no data yet")
)
