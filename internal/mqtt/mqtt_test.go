package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/larsks/omada-poe/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeBroker struct {
	mutex     sync.Mutex
	published []message
	handlers  map[string]func(string, []byte)
	failSub   bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]func(string, []byte))}
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.published = append(f.published, message{topic: topic, retained: retained, payload: payload.(string)})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, qos byte, handler func(string, []byte)) error {
	if f.failSub {
		return ErrSubscribeFailed
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) deliver(filter, topic, payload string) {
	f.mutex.Lock()
	handler := f.handlers[filter]
	f.mutex.Unlock()
	handler(topic, []byte(payload))
}

func (f *fakeBroker) last() message {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.published[len(f.published)-1]
}

type plug struct {
	on  bool
	err error
}

func (p *plug) Domain() string                { return hub.DomainSwitch }
func (p *plug) Platform() string              { return "test" }
func (p *plug) UniqueID() string              { return "plug-1" }
func (p *plug) Name() string                  { return "Garage Camera" }
func (p *plug) Available() bool               { return true }
func (p *plug) IsOn() bool                    { return p.on }
func (p *plug) Attributes() map[string]any    { return nil }
func (p *plug) TurnOn(context.Context) error  { return p.set(true) }
func (p *plug) TurnOff(context.Context) error { return p.set(false) }

func (p *plug) State() string {
	if p.on {
		return hub.StateOn
	}
	return hub.StateOff
}

func (p *plug) set(on bool) error {
	if p.err != nil {
		return p.err
	}
	p.on = on
	return nil
}

func newTestBridge(t *testing.T) (*Bridge, *fakeBroker, *hub.Hub, *plug) {
	t.Helper()

	h, err := hub.New()
	require.NoError(t, err)

	p := &plug{on: true}
	_, err = h.AddEntity(p)
	require.NoError(t, err)

	bridge := NewBridge(h, "home/poe/")
	h.Subscribe(bridge.HandleStateChange)

	broker := newFakeBroker()
	require.NoError(t, bridge.Attach(broker))
	return bridge, broker, h, p
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{ServerURL: "http://localhost:1883"})
	assert.ErrorIs(t, err, ErrInvalidServerURL)
	assert.Contains(t, err.Error(), "must use mqtt:// scheme")

	_, err = NewClient(Config{ServerURL: "mqtt://%zz"})
	assert.ErrorIs(t, err, ErrInvalidServerURL)
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{}
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("a/b", 0, false, "x"), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe("a/b", 0, func(string, []byte) {}), ErrNotConnected)
	c.Disconnect(0)
}

func TestDefaultClientID(t *testing.T) {
	a, b := DefaultClientID(), DefaultClientID()
	assert.Regexp(t, `^omada-poe-[0-9a-f-]{36}$`, a)
	assert.NotEqual(t, a, b)
}

func TestBridge_Topics(t *testing.T) {
	bridge := NewBridge(nil, "")
	assert.Equal(t, "omada-poe/switch/garage_camera/state", bridge.StateTopic("garage_camera"))
	assert.Equal(t, "omada-poe/switch/garage_camera/set", bridge.CommandTopic("garage_camera"))
}

func TestBridge_AttachPublishesCurrentStates(t *testing.T) {
	_, broker, _, _ := newTestBridge(t)

	require.Len(t, broker.published, 1)
	assert.Equal(t, message{topic: "home/poe/switch/garage_camera/state", retained: true, payload: "ON"}, broker.published[0])
	assert.Contains(t, broker.handlers, "home/poe/switch/+/set")
}

func TestBridge_AttachSubscribeError(t *testing.T) {
	h, err := hub.New()
	require.NoError(t, err)

	broker := newFakeBroker()
	broker.failSub = true
	assert.ErrorIs(t, NewBridge(h, "").Attach(broker), ErrSubscribeFailed)
}

func TestBridge_PublishesStateChanges(t *testing.T) {
	_, broker, h, p := newTestBridge(t)

	p.on = false
	h.WriteState(p)
	assert.Equal(t, "OFF", broker.last().payload)

	require.NoError(t, h.RemoveEntity("switch.garage_camera"))
	assert.Equal(t, message{topic: "home/poe/switch/garage_camera/state", retained: true, payload: "unavailable"}, broker.last())
}

func TestBridge_Commands(t *testing.T) {
	tests := []struct {
		payload string
		wantOn  bool
	}{
		{"OFF", false},
		{"off", false},
		{"TOGGLE", false},
		{" ON ", true},
		{"bogus", true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, broker, _, p := newTestBridge(t)

			broker.deliver("home/poe/switch/+/set", "home/poe/switch/garage_camera/set", tt.payload)
			assert.Equal(t, tt.wantOn, p.on)
		})
	}
}

func TestBridge_CommandForUnknownEntity(t *testing.T) {
	_, broker, _, p := newTestBridge(t)

	broker.deliver("home/poe/switch/+/set", "home/poe/switch/nothing_here/set", "OFF")
	broker.deliver("home/poe/switch/+/set", "other/switch/garage_camera/set", "OFF")
	assert.True(t, p.on)
}

func TestBridge_CommandFailureKeepsState(t *testing.T) {
	_, broker, _, p := newTestBridge(t)
	p.err = errors.New("controller unreachable")

	broker.deliver("home/poe/switch/+/set", "home/poe/switch/garage_camera/set", "OFF")
	assert.True(t, p.on)
	assert.Len(t, broker.published, 1)
}
