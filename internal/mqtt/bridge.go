package mqtt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/larsks/omada-poe/internal/hub"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "omada-poe"

// CommandTimeout bounds a switch command received over MQTT.
var CommandTimeout = 30 * time.Second

// Broker is the part of Client the bridge uses.
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Hub is the part of the entity hub the bridge uses.
type Hub interface {
	States() []hub.State
	CallService(ctx context.Context, domain, service, entityID string) error
}

// Bridge mirrors hub states to retained MQTT topics and turns messages on
// the command topics into service calls.
//
//	<prefix>/switch/<object_id>/state   ON, OFF or unavailable
//	<prefix>/switch/<object_id>/set     ON, OFF or TOGGLE
type Bridge struct {
	hub    Hub
	prefix string

	mutex  sync.Mutex
	broker Broker
}

// NewBridge creates a bridge. Nothing is published until a broker is
// attached with OnConnect.
func NewBridge(h Hub, prefix string) *Bridge {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Bridge{
		hub:    h,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// StateTopic is the topic the state of an entity is published on.
func (b *Bridge) StateTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/%s/state", b.prefix, hub.DomainSwitch, objectID)
}

// CommandTopic is the topic commands for an entity are read from.
func (b *Bridge) CommandTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/%s/set", b.prefix, hub.DomainSwitch, objectID)
}

// OnConnect is suitable as Config.OnConnect.
func (b *Bridge) OnConnect(c *Client) {
	if err := b.Attach(c); err != nil {
		log.Printf("failed to attach mqtt bridge: %v", err)
	}
}

// Attach subscribes to the command topics and publishes every current state.
func (b *Bridge) Attach(broker Broker) error {
	b.mutex.Lock()
	b.broker = broker
	b.mutex.Unlock()

	if err := broker.Subscribe(b.CommandTopic("+"), 1, b.handleCommand); err != nil {
		return err
	}

	for _, state := range b.hub.States() {
		b.publish(broker, state.ObjectID(), statePayload(state.State))
	}
	return nil
}

// HandleStateChange is a hub state listener.
func (b *Bridge) HandleStateChange(change hub.StateChange) {
	b.mutex.Lock()
	broker := b.broker
	b.mutex.Unlock()
	if broker == nil {
		return
	}

	_, objectID, _ := strings.Cut(change.EntityID, ".")
	payload := hub.StateUnavailable
	if change.New != nil {
		payload = statePayload(change.New.State)
	}
	b.publish(broker, objectID, payload)
}

func (b *Bridge) publish(broker Broker, objectID, payload string) {
	if err := broker.Publish(b.StateTopic(objectID), 1, true, payload); err != nil {
		log.Printf("failed to publish state of %s: %v", objectID, err)
	}
}

func statePayload(state string) string {
	switch state {
	case hub.StateOn:
		return "ON"
	case hub.StateOff:
		return "OFF"
	default:
		return state
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/"+hub.DomainSwitch+"/")
	if !ok {
		return
	}
	objectID, ok := strings.CutSuffix(rest, "/set")
	if !ok || objectID == "" || strings.Contains(objectID, "/") {
		return
	}

	var service string
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON":
		service = hub.ServiceTurnOn
	case "OFF":
		service = hub.ServiceTurnOff
	case "TOGGLE":
		service = hub.ServiceToggle
	default:
		log.Printf("ignoring invalid command %q on %s", payload, topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()

	entityID := hub.DomainSwitch + "." + objectID
	if err := b.hub.CallService(ctx, hub.DomainSwitch, service, entityID); err != nil {
		log.Printf("mqtt command %s on %s failed: %v", service, entityID, err)
	}
}
