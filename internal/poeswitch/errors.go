package poeswitch

import "errors"

var (
	ErrNoClient        = errors.New("omada site client is required")
	ErrNoHub           = errors.New("hub is required")
	ErrAlreadySetup    = errors.New("integration already set up")
	ErrListSwitches    = errors.New("failed to list switches")
	ErrInitialRefresh  = errors.New("initial port refresh failed")
	ErrRefreshFailures = errors.New("some switches failed to refresh")
)
