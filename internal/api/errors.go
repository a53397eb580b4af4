package api

import "errors"

var (
	ErrNoHub                = errors.New("api server requires a hub")
	ErrServerShutdownFailed = errors.New("server shutdown failed")
)
