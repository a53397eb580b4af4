package omadatest

import (
	"context"
	"sync"

	"github.com/larsks/omada-poe/internal/omada"
	"github.com/stretchr/testify/mock"
)

// TestingT is the part of *testing.T the mock needs.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSiteClient is a testify mock of omada.SiteClient. Return values may be
// functions with the same signature as the mocked method, in which case they
// are called with the method arguments.
type MockSiteClient struct {
	mock.Mock

	mutex    sync.Mutex
	ports    []omada.SwitchPortDetails
	recorded []mock.Call
}

var _ omada.SiteClient = (*MockSiteClient)(nil)

// NewMockSiteClient creates a mock and asserts its expectations when the
// test ends.
func NewMockSiteClient(t TestingT) *MockSiteClient {
	m := &MockSiteClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSiteClient) GetSwitches(ctx context.Context) ([]omada.Device, error) {
	m.record("GetSwitches", ctx)
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) ([]omada.Device, error)); ok {
		return fn(ctx)
	}
	devices, _ := args.Get(0).([]omada.Device)
	return devices, args.Error(1)
}

func (m *MockSiteClient) GetSwitchPorts(ctx context.Context, device omada.Device) ([]omada.SwitchPortDetails, error) {
	m.record("GetSwitchPorts", ctx, device)
	args := m.Called(ctx, device)
	if fn, ok := args.Get(0).(func(context.Context, omada.Device) ([]omada.SwitchPortDetails, error)); ok {
		return fn(ctx, device)
	}
	ports, _ := args.Get(0).([]omada.SwitchPortDetails)
	return ports, args.Error(1)
}

func (m *MockSiteClient) UpdateSwitchPort(ctx context.Context, device omada.Device, port omada.SwitchPortDetails, overrides omada.SwitchPortOverrides) (*omada.SwitchPortDetails, error) {
	m.record("UpdateSwitchPort", ctx, device, port, overrides)
	args := m.Called(ctx, device, port, overrides)
	if fn, ok := args.Get(0).(func(context.Context, omada.Device, omada.SwitchPortDetails, omada.SwitchPortOverrides) (*omada.SwitchPortDetails, error)); ok {
		return fn(ctx, device, port, overrides)
	}
	details, _ := args.Get(0).(*omada.SwitchPortDetails)
	return details, args.Error(1)
}

// record keeps a copy of each call under the mock's own lock, so tests can
// inspect calls while a coordinator is still polling.
func (m *MockSiteClient) record(method string, args ...any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.recorded = append(m.recorded, mock.Call{Method: method, Arguments: args})
}

// ResetCalls forgets recorded calls but keeps expectations.
func (m *MockSiteClient) ResetCalls() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.recorded = nil
}

// NumberOfCalls returns how many times method was called since the last
// ResetCalls.
func (m *MockSiteClient) NumberOfCalls(method string) int {
	return len(m.callsTo(method))
}

func (m *MockSiteClient) callsTo(method string) []mock.Call {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var calls []mock.Call
	for _, c := range m.recorded {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// SetPorts replaces the ports served by a fixture client.
func (m *MockSiteClient) SetPorts(ports []omada.SwitchPortDetails) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ports = ports
}

func (m *MockSiteClient) currentPorts(context.Context, omada.Device) ([]omada.SwitchPortDetails, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ports := make([]omada.SwitchPortDetails, len(m.ports))
	copy(ports, m.ports)
	return ports, nil
}

// UpdateCalls returns the recorded UpdateSwitchPort calls.
func (m *MockSiteClient) UpdateCalls() []mock.Call {
	return m.callsTo("UpdateSwitchPort")
}

// FixtureClient returns a mock serving the fixture switch and its ports, with
// UpdateSwitchPort echoing the requested PoE state back.
func FixtureClient(t TestingT) (*MockSiteClient, error) {
	switches, err := LoadSwitches()
	if err != nil {
		return nil, err
	}
	ports, err := LoadPorts(PoESwitchPortsFixture)
	if err != nil {
		return nil, err
	}

	m := &MockSiteClient{ports: ports}
	m.Test(t)
	m.On("GetSwitches", mock.Anything).Return(switches, nil).Maybe()
	m.On("GetSwitchPorts", mock.Anything, mock.Anything).Return(m.currentPorts, nil).Maybe()
	m.On("UpdateSwitchPort", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(EchoUpdate, nil).Maybe()
	return m, nil
}

// EchoUpdate is a return function for UpdateSwitchPort that reports the port
// with the requested overrides applied.
func EchoUpdate(_ context.Context, _ omada.Device, port omada.SwitchPortDetails, overrides omada.SwitchPortOverrides) (*omada.SwitchPortDetails, error) {
	updated := port
	if overrides.EnablePoE != nil {
		if *overrides.EnablePoE {
			updated.PoEMode = omada.PoEModeEnabled
		} else {
			updated.PoEMode = omada.PoEModeDisabled
		}
	}
	if overrides.Name != nil {
		updated.Name = *overrides.Name
	}
	return &updated, nil
}
