// Package poeswitch exposes the PoE output of Omada switch ports as switch
// entities.
package poeswitch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/larsks/omada-poe/internal/coordinator"
	"github.com/larsks/omada-poe/internal/hub"
	"github.com/larsks/omada-poe/internal/omada"
)

// Options configures an Integration.
type Options struct {
	PollInterval time.Duration
	Timer        coordinator.Timer
	Logger       coordinator.Logger
}

// SwitchCoordinator polls the ports of one switch.
type SwitchCoordinator = coordinator.Coordinator[PortMap]

// Integration creates and maintains the PoE switch entities of one site.
type Integration struct {
	client omada.SiteClient
	hub    *hub.Hub
	opts   Options

	mutex        sync.Mutex
	setup        bool
	coordinators map[string]*SwitchCoordinator
	entities     []*PoESwitch
	removers     []func()
}

// New creates an integration. Nothing is fetched until Setup.
func New(client omada.SiteClient, h *hub.Hub, opts Options) (*Integration, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if h == nil {
		return nil, ErrNoHub
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = coordinator.DefaultInterval
	}

	return &Integration{
		client:       client,
		hub:          h,
		opts:         opts,
		coordinators: make(map[string]*SwitchCoordinator),
	}, nil
}

func (i *Integration) portFetcher(device omada.Device) coordinator.FetchFunc[PortMap] {
	return func(ctx context.Context) (PortMap, error) {
		ports, err := i.client.GetSwitchPorts(ctx, device)
		if err != nil {
			return nil, err
		}
		portMap := make(PortMap, len(ports))
		for _, p := range ports {
			portMap[p.PortID] = p
		}
		return portMap, nil
	}
}

// Setup enumerates switches, fetches their ports, registers one entity per
// PoE capable port and starts polling.
func (i *Integration) Setup(ctx context.Context) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.setup {
		return ErrAlreadySetup
	}

	switches, err := i.client.GetSwitches(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListSwitches, err)
	}

	for _, device := range switches {
		c, err := coordinator.New(
			fmt.Sprintf("ports of %s", device),
			i.portFetcher(device),
			coordinator.Options{
				Interval: i.opts.PollInterval,
				Timer:    i.opts.Timer,
				Logger:   i.opts.Logger,
			},
		)
		if err != nil {
			i.teardownLocked()
			return err
		}

		if err := c.Refresh(ctx); err != nil {
			i.teardownLocked()
			return fmt.Errorf("%w: %v", ErrInitialRefresh, err)
		}
		i.coordinators[device.MAC] = c

		ports, _ := c.Data()
		for _, port := range sortedPorts(ports) {
			if !port.SupportsPoE() {
				continue
			}

			entity := NewPoESwitch(i.client, device, port)
			if _, err := i.hub.AddEntity(entity); err != nil {
				i.teardownLocked()
				return fmt.Errorf("failed to add entity for %s port %d: %w", device, port.Port, err)
			}
			i.entities = append(i.entities, entity)
			i.removers = append(i.removers, c.AddListener(entity.HandleUpdate))
		}
	}

	for _, c := range i.coordinators {
		if err := c.Start(ctx); err != nil {
			i.teardownLocked()
			return err
		}
	}

	i.purgeStaleLocked(switches)

	i.setup = true
	log.Printf("set up %d PoE switches on %d network switches", len(i.entities), len(switches))
	return nil
}

// purgeStaleLocked forgets registry entries for ports of the given switches
// that no longer carry a PoE switch entity. Switches the controller did not
// list keep their entries.
func (i *Integration) purgeStaleLocked(switches []omada.Device) {
	current := make(map[string]bool, len(i.entities))
	for _, e := range i.entities {
		current[e.UniqueID()] = true
	}

	i.hub.PurgeRegistry(Platform, func(entry hub.RegistryEntry) bool {
		if current[entry.UniqueID] {
			return false
		}
		for _, device := range switches {
			if strings.HasPrefix(entry.UniqueID, device.MAC+"_") {
				return true
			}
		}
		return false
	})
}

func sortedPorts(ports PortMap) []omada.SwitchPortDetails {
	sorted := make([]omada.SwitchPortDetails, 0, len(ports))
	for _, p := range ports {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Port < sorted[b].Port
	})
	return sorted
}

// Entities returns the entities created by Setup.
func (i *Integration) Entities() []*PoESwitch {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return append([]*PoESwitch(nil), i.entities...)
}

// Coordinator returns the coordinator of the switch with the given MAC.
func (i *Integration) Coordinator(mac string) (*SwitchCoordinator, bool) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	c, ok := i.coordinators[mac]
	return c, ok
}

// RefreshAll polls every switch now.
func (i *Integration) RefreshAll(ctx context.Context) error {
	i.mutex.Lock()
	coordinators := make([]*SwitchCoordinator, 0, len(i.coordinators))
	for _, c := range i.coordinators {
		coordinators = append(coordinators, c)
	}
	i.mutex.Unlock()

	var errs []error
	for _, c := range coordinators {
		if err := c.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrRefreshFailures, errors.Join(errs...))
	}
	return nil
}

// Teardown stops polling and removes every entity from the hub.
func (i *Integration) Teardown() {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.teardownLocked()
}

func (i *Integration) teardownLocked() {
	for _, c := range i.coordinators {
		c.Stop()
	}
	for _, remove := range i.removers {
		remove()
	}
	for _, e := range i.entities {
		if id := e.EntityID(); id != "" {
			if err := i.hub.RemoveEntity(id); err != nil {
				log.Printf("failed to remove %s: %v", id, err)
			}
		}
	}

	i.coordinators = make(map[string]*SwitchCoordinator)
	i.entities = nil
	i.removers = nil
	i.setup = false
}
