package daemon

import "errors"

var (
	ErrMissingControllerURL = errors.New("controller url is required")
	ErrMissingCredentials   = errors.New("controller username and password are required")
	ErrInvalidPollInterval  = errors.New("poll interval must be positive")
	ErrInvalidListenPort    = errors.New("listen port must be between 0 and 65535")
	ErrConfigFileNotFound   = errors.New("config file not found")
	ErrInvalidConfig        = errors.New("invalid config type")
)
