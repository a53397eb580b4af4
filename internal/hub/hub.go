// Package hub keeps the entity registry and the current state of every
// entity, and dispatches service calls to entities.
package hub

import (
	"context"
	"fmt"
	"log"
	"maps"
	"reflect"
	"sort"
	"sync"
	"time"
)

// StateListener receives every state change.
type StateListener func(change StateChange)

// Hub tracks entities and their states.
type Hub struct {
	mutex sync.RWMutex
	// writeMutex orders state writes: the entity snapshot, the commit and
	// the listener notifications of one write complete before the next
	// write starts. Listeners must not call WriteState or RemoveEntity.
	writeMutex sync.Mutex
	entities   map[string]Entity
	states     map[string]State
	registry   map[string]RegistryEntry
	store      RegistryStore
	listeners  map[int]StateListener
	nextID     int
	now        func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithStore persists the entity registry in store.
func WithStore(store RegistryStore) Option {
	return func(h *Hub) {
		h.store = store
	}
}

// WithClock replaces time.Now for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		h.now = now
	}
}

// New creates a hub, loading the registry from the store if one is set.
func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		entities:  make(map[string]Entity),
		states:    make(map[string]State),
		registry:  make(map[string]RegistryEntry),
		listeners: make(map[int]StateListener),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.store != nil {
		entries, err := h.store.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistryStore, err)
		}
		for _, entry := range entries {
			h.registry[entry.UniqueID] = entry
		}
		log.Printf("loaded %d entity registry entries", len(entries))
	}

	return h, nil
}

// Subscribe registers a state listener and returns a function that removes it.
func (h *Hub) Subscribe(fn StateListener) func() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextID
	h.nextID++
	h.listeners[id] = fn

	return func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		delete(h.listeners, id)
	}
}

// AddEntity registers an entity, assigns its entity id and writes its
// initial state. Entity ids are kept stable through the registry.
func (h *Hub) AddEntity(e Entity) (string, error) {
	if e.UniqueID() == "" {
		return "", ErrEmptyUniqueID
	}

	h.mutex.Lock()
	entry, known := h.registry[e.UniqueID()]
	if known {
		if _, active := h.entities[entry.EntityID]; active {
			h.mutex.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDuplicateUniqueID, e.UniqueID())
		}
	} else {
		entry = RegistryEntry{
			EntityID: h.generateEntityIDLocked(e),
			UniqueID: e.UniqueID(),
			Platform: e.Platform(),
			Name:     e.Name(),
		}
		h.registry[entry.UniqueID] = entry
	}
	h.entities[entry.EntityID] = e
	store := h.store
	h.mutex.Unlock()

	if store != nil && !known {
		if err := store.Save(entry); err != nil {
			log.Printf("failed to save registry entry for %s: %v", entry.EntityID, err)
		}
	}

	if lc, ok := e.(Lifecycle); ok {
		lc.AddedToHub(h, entry.EntityID)
	}
	h.WriteState(e)

	return entry.EntityID, nil
}

// generateEntityIDLocked builds domain.slug(name), adding _2, _3, ... if
// the id is taken by another registry entry.
func (h *Hub) generateEntityIDLocked(e Entity) string {
	taken := make(map[string]bool, len(h.registry))
	for _, entry := range h.registry {
		taken[entry.EntityID] = true
	}

	base := fmt.Sprintf("%s.%s", e.Domain(), Slugify(e.Name()))
	candidate := base
	for i := 2; taken[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	return candidate
}

// RemoveEntity drops an entity and its state. The registry entry is kept so
// the entity gets the same id if it comes back.
func (h *Hub) RemoveEntity(entityID string) error {
	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()

	h.mutex.Lock()
	e, ok := h.entities[entityID]
	if !ok {
		h.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	delete(h.entities, entityID)
	old, hadState := h.states[entityID]
	delete(h.states, entityID)
	listeners := h.listenersLocked()
	h.mutex.Unlock()

	if lc, ok := e.(Lifecycle); ok {
		lc.WillRemoveFromHub()
	}

	if hadState {
		change := StateChange{EntityID: entityID, Old: &old}
		for _, fn := range listeners {
			fn(change)
		}
	}
	return nil
}

// entityIDLocked finds the entity id of a registered entity.
func (h *Hub) entityIDLocked(e Entity) (string, bool) {
	entry, ok := h.registry[e.UniqueID()]
	if !ok {
		return "", false
	}
	if h.entities[entry.EntityID] != e {
		return "", false
	}
	return entry.EntityID, true
}

func (h *Hub) listenersLocked() []StateListener {
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	listeners := make([]StateListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, h.listeners[id])
	}
	return listeners
}

// WriteState records the current state of e and notifies listeners if it
// changed.
func (h *Hub) WriteState(e Entity) {
	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()

	value := e.State()
	if !e.Available() {
		value = StateUnavailable
	}
	attrs := e.Attributes()
	name := e.Name()

	h.mutex.Lock()
	entityID, ok := h.entityIDLocked(e)
	if !ok {
		h.mutex.Unlock()
		return
	}

	now := h.now()
	old, existed := h.states[entityID]
	if existed && old.State == value && old.Name == name && reflect.DeepEqual(old.Attributes, attrs) {
		h.mutex.Unlock()
		return
	}

	next := State{
		EntityID:    entityID,
		State:       value,
		Name:        name,
		Attributes:  maps.Clone(attrs),
		LastChanged: now,
		LastUpdated: now,
	}
	if existed && old.State == value {
		next.LastChanged = old.LastChanged
	}
	h.states[entityID] = next
	listeners := h.listenersLocked()
	h.mutex.Unlock()

	change := StateChange{EntityID: entityID, New: &next}
	if existed {
		change.Old = &old
	}
	for _, fn := range listeners {
		fn(change)
	}
}

// GetState returns the state of an entity.
func (h *Hub) GetState(entityID string) (State, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	s, ok := h.states[entityID]
	return s, ok
}

// States returns all states sorted by entity id.
func (h *Hub) States() []State {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	states := make([]State, 0, len(h.states))
	for _, s := range h.states {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].EntityID < states[j].EntityID
	})
	return states
}

// Entity returns the entity registered under entityID.
func (h *Hub) Entity(entityID string) (Entity, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	e, ok := h.entities[entityID]
	return e, ok
}

// RegistryEntry looks up the registry entry for an entity id.
func (h *Hub) RegistryEntry(entityID string) (RegistryEntry, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, entry := range h.registry {
		if entry.EntityID == entityID {
			return entry, true
		}
	}
	return RegistryEntry{}, false
}

// PurgeRegistry drops the registry entries of platform that match and have
// no active entity, so their entity ids can be reused. It returns the
// number of entries dropped.
func (h *Hub) PurgeRegistry(platform string, match func(RegistryEntry) bool) int {
	h.mutex.Lock()
	var purged []RegistryEntry
	for uniqueID, entry := range h.registry {
		if entry.Platform != platform || !match(entry) {
			continue
		}
		if _, active := h.entities[entry.EntityID]; active {
			continue
		}
		delete(h.registry, uniqueID)
		purged = append(purged, entry)
	}
	store := h.store
	h.mutex.Unlock()

	for _, entry := range purged {
		log.Printf("removing stale registry entry %s (%s)", entry.EntityID, entry.UniqueID)
		if store == nil {
			continue
		}
		if err := store.Delete(entry.UniqueID); err != nil {
			log.Printf("failed to delete registry entry for %s: %v", entry.EntityID, err)
		}
	}
	return len(purged)
}

// CallService runs a service against an entity and writes its new state.
func (h *Hub) CallService(ctx context.Context, domain, service, entityID string) error {
	if domain != DomainSwitch {
		return fmt.Errorf("%w: %s", ErrUnsupportedDomain, domain)
	}

	e, ok := h.Entity(entityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	sw, ok := e.(SwitchEntity)
	if !ok || e.Domain() != DomainSwitch {
		return fmt.Errorf("%w: %s", ErrNotSwitch, entityID)
	}

	var err error
	switch service {
	case ServiceTurnOn:
		err = sw.TurnOn(ctx)
	case ServiceTurnOff:
		err = sw.TurnOff(ctx)
	case ServiceToggle:
		if sw.IsOn() {
			err = sw.TurnOff(ctx)
		} else {
			err = sw.TurnOn(ctx)
		}
	default:
		return fmt.Errorf("%w: %s.%s", ErrUnknownService, domain, service)
	}
	if err != nil {
		return fmt.Errorf("%s.%s on %s: %w", domain, service, entityID, err)
	}

	h.WriteState(e)
	return nil
}
