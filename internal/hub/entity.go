package hub

import (
	"context"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Domains
const (
	DomainSwitch = "switch"
)

// Switch services
const (
	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"
	ServiceToggle  = "toggle"
)

// States
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnavailable = "unavailable"
)

// Entity is anything whose state the hub tracks.
type Entity interface {
	Domain() string
	Platform() string
	UniqueID() string
	Name() string
	Available() bool
	State() string
	Attributes() map[string]any
}

// SwitchEntity is an entity that can be turned on and off.
type SwitchEntity interface {
	Entity
	IsOn() bool
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// StateWriter is how an entity pushes its state after it changes.
type StateWriter interface {
	WriteState(e Entity)
}

// Lifecycle is implemented by entities that want to know when they are added
// to or removed from a hub.
type Lifecycle interface {
	AddedToHub(w StateWriter, entityID string)
	WillRemoveFromHub()
}

// State is the published state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Name        string         `json:"name"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// ObjectID returns the part of the entity id after the domain.
func (s State) ObjectID() string {
	_, objectID, _ := strings.Cut(s.EntityID, ".")
	return objectID
}

// StateChange is sent to state listeners. Old is nil for a new entity and
// New is nil for a removed one.
type StateChange struct {
	EntityID string
	Old      *State
	New      *State
}

// RegistryEntry ties a stable unique id to an entity id.
type RegistryEntry struct {
	EntityID string
	UniqueID string
	Platform string
	Name     string
}

// RegistryStore persists registry entries.
type RegistryStore interface {
	Load() ([]RegistryEntry, error)
	Save(entry RegistryEntry) error
	Delete(uniqueID string) error
}

// Slugify turns a display name into an object id: lower case words joined
// by underscores.
func Slugify(name string) string {
	s := slug.Make(name)
	s = strings.ReplaceAll(s, "-", "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
