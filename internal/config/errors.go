package config

import "errors"

// Loading errors
var (
	ErrReadConfigFile    = errors.New("cannot read config file")
	ErrDecodeConfig      = errors.New("cannot decode config")
	ErrUnknownConfigKeys = errors.New("config has unknown keys")
)

// Errors recording the config file path on the target struct
var (
	ErrTargetNotPointer        = errors.New("config target must be a non-nil pointer")
	ErrTargetNotStruct         = errors.New("config target must point to a struct")
	ErrConfigFileFieldReadOnly = errors.New("ConfigFile field is not settable")
	ErrConfigFileFieldType     = errors.New("ConfigFile field must be a string")
)
