package hub

import "errors"

// Registry errors
var (
	ErrDuplicateUniqueID = errors.New("entity with this unique id already exists")
	ErrEmptyUniqueID     = errors.New("entity unique id is empty")
	ErrRegistryStore     = errors.New("registry store failed")
)

// Service call errors
var (
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrUnknownService    = errors.New("unknown service")
	ErrUnsupportedDomain = errors.New("unsupported domain")
	ErrNotSwitch         = errors.New("entity is not a switch")
)
