// Package omadatest provides fixtures and a mock SiteClient for tests.
package omadatest

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/larsks/omada-poe/internal/omada"
)

//go:embed testdata/*.json
var fixtures embed.FS

// PoESwitchMAC is the MAC of the switch in the device fixture.
const PoESwitchMAC = "54-AF-97-00-00-01"

// PoESwitchPortsFixture is the port list of the fixture switch.
const PoESwitchPortsFixture = "switch-ports-TL-SG3210XHP-M2.json"

// LoadFixture returns the raw contents of a fixture file.
func LoadFixture(name string) ([]byte, error) {
	return fixtures.ReadFile("testdata/" + name)
}

// LoadRawPorts decodes a port fixture into generic maps so tests can edit
// fields before building port details.
func LoadRawPorts(name string) ([]map[string]any, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", name, err)
	}
	return raw, nil
}

// PortsFromRaw converts generic port maps into port details.
func PortsFromRaw(raw []map[string]any) ([]omada.SwitchPortDetails, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var ports []omada.SwitchPortDetails
	if err := json.Unmarshal(data, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

// LoadPorts decodes a port fixture.
func LoadPorts(name string) ([]omada.SwitchPortDetails, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	var ports []omada.SwitchPortDetails
	if err := json.Unmarshal(data, &ports); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", name, err)
	}
	return ports, nil
}

// LoadDevices decodes the device fixture.
func LoadDevices() ([]omada.Device, error) {
	data, err := LoadFixture("devices.json")
	if err != nil {
		return nil, err
	}
	var devices []omada.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("failed to parse device fixture: %w", err)
	}
	return devices, nil
}

// LoadSwitches returns only the switches from the device fixture.
func LoadSwitches() ([]omada.Device, error) {
	devices, err := LoadDevices()
	if err != nil {
		return nil, err
	}
	var switches []omada.Device
	for _, d := range devices {
		if d.Type == "switch" {
			switches = append(switches, d)
		}
	}
	return switches, nil
}
