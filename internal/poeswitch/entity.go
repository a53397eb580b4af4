package poeswitch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/larsks/omada-poe/internal/hub"
	"github.com/larsks/omada-poe/internal/omada"
)

// Platform is the registry platform name of every entity created here.
const Platform = "omada"

// PortMap holds the polled ports of one switch keyed by port id.
type PortMap map[string]omada.SwitchPortDetails

// PoESwitch controls PoE output on one switch port.
type PoESwitch struct {
	client omada.SiteClient
	device omada.Device

	mutex     sync.RWMutex
	port      omada.SwitchPortDetails
	on        bool
	available bool
	writer    hub.StateWriter
	entityID  string
}

var (
	_ hub.SwitchEntity = (*PoESwitch)(nil)
	_ hub.Lifecycle    = (*PoESwitch)(nil)
)

// NewPoESwitch creates the entity for a PoE capable port.
func NewPoESwitch(client omada.SiteClient, device omada.Device, port omada.SwitchPortDetails) *PoESwitch {
	return &PoESwitch{
		client:    client,
		device:    device,
		port:      port,
		on:        port.PoEEnabled(),
		available: true,
	}
}

// PortBaseName is "Port N" for a default named port and "Port N (name)" for
// a renamed one.
func PortBaseName(port omada.SwitchPortDetails) string {
	base := fmt.Sprintf("Port %d", port.Port)
	if port.HasCustomName() {
		return fmt.Sprintf("%s (%s)", base, port.Name)
	}
	return base
}

// UniqueID builds the registry unique id for a port's PoE switch.
func UniqueID(device omada.Device, port omada.SwitchPortDetails) string {
	return fmt.Sprintf("%s_%s_poe", device.MAC, port.PortID)
}

func (s *PoESwitch) Domain() string   { return hub.DomainSwitch }
func (s *PoESwitch) Platform() string { return Platform }

func (s *PoESwitch) UniqueID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return UniqueID(s.device, s.port)
}

func (s *PoESwitch) Name() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return fmt.Sprintf("%s %s PoE", s.device.Name, PortBaseName(s.port))
}

func (s *PoESwitch) Available() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.available
}

func (s *PoESwitch) IsOn() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.on
}

func (s *PoESwitch) State() string {
	if s.IsOn() {
		return hub.StateOn
	}
	return hub.StateOff
}

func (s *PoESwitch) Attributes() map[string]any {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return map[string]any{
		"device_mac":  s.device.MAC,
		"port":        s.port.Port,
		"port_id":     s.port.PortID,
		"port_name":   s.port.Name,
		"poe_power_w": s.port.PortStatus.PoEPower,
		"link":        s.port.PortStatus.Link == 1,
	}
}

// Port returns the last known details of the port.
func (s *PoESwitch) Port() omada.SwitchPortDetails {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.port
}

// EntityID returns the id assigned by the hub, or "" before registration.
func (s *PoESwitch) EntityID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.entityID
}

func (s *PoESwitch) AddedToHub(w hub.StateWriter, entityID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writer = w
	s.entityID = entityID
}

func (s *PoESwitch) WillRemoveFromHub() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writer = nil
}

// TurnOn enables PoE on the port.
func (s *PoESwitch) TurnOn(ctx context.Context) error {
	return s.setPoE(ctx, true)
}

// TurnOff disables PoE on the port.
func (s *PoESwitch) TurnOff(ctx context.Context) error {
	return s.setPoE(ctx, false)
}

func (s *PoESwitch) setPoE(ctx context.Context, enable bool) error {
	s.mutex.RLock()
	device := s.device
	port := s.port
	s.mutex.RUnlock()

	updated, err := s.client.UpdateSwitchPort(ctx, device, port, omada.WithPoE(enable))
	if err != nil {
		return fmt.Errorf("failed to set PoE on %s port %d: %w", device, port.Port, err)
	}

	s.mutex.Lock()
	if updated != nil {
		s.port = *updated
		s.on = updated.PoEEnabled()
	} else {
		s.on = enable
	}
	writer := s.writer
	s.mutex.Unlock()

	log.Printf("set PoE %t on %s port %d", enable, device, port.Port)
	s.writeState(writer)
	return nil
}

// HandleUpdate applies a coordinator refresh to the entity.
func (s *PoESwitch) HandleUpdate(ports PortMap, ok bool) {
	s.mutex.Lock()
	if !ok {
		s.available = false
	} else if port, found := ports[s.port.PortID]; found {
		s.port = port
		s.on = port.PoEEnabled()
		s.available = true
	} else {
		s.available = false
	}
	writer := s.writer
	s.mutex.Unlock()

	s.writeState(writer)
}

func (s *PoESwitch) writeState(writer hub.StateWriter) {
	if writer != nil {
		writer.WriteState(s)
	}
}
