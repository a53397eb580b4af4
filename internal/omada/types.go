package omada

import (
	"encoding/json"
	"fmt"
)

// PoEMode is the PoE setting of a switch port.
type PoEMode int

const (
	PoEModeNone     PoEMode = -1
	PoEModeDisabled PoEMode = 0
	PoEModeEnabled  PoEMode = 1
)

func (m PoEMode) String() string {
	switch m {
	case PoEModeNone:
		return "none"
	case PoEModeDisabled:
		return "disabled"
	case PoEModeEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// PortType is the physical media of a switch port.
type PortType int

const (
	PortTypeCopper PortType = 1
	PortTypeCombo  PortType = 2
	PortTypeSFP    PortType = 3
)

// Device is a device adopted by the controller.
type Device struct {
	MAC    string `json:"mac"`
	Name   string `json:"name"`
	Model  string `json:"model"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.MAC)
}

// PortStatus is the live status block of a switch port.
type PortStatus struct {
	Link     int     `json:"linkStatus"`
	Speed    int     `json:"linkSpeed"`
	PoEPower float64 `json:"poePower"`
}

// SwitchPortDetails describes a single switch port as reported by the controller.
type SwitchPortDetails struct {
	PortID      string     `json:"id"`
	Port        int        `json:"port"`
	Name        string     `json:"name"`
	Type        PortType   `json:"type"`
	PoEMode     PoEMode    `json:"poe"`
	Disable     bool       `json:"disable"`
	ProfileID   string     `json:"profileId"`
	ProfileName string     `json:"profileName"`
	PortStatus  PortStatus `json:"portStatus"`
}

// UnmarshalJSON decodes a port, treating a missing "poe" field as PoEModeNone.
func (p *SwitchPortDetails) UnmarshalJSON(data []byte) error {
	type plain SwitchPortDetails
	aux := struct {
		*plain
		PoE *PoEMode `json:"poe"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.PoE == nil {
		p.PoEMode = PoEModeNone
	} else {
		p.PoEMode = *aux.PoE
	}
	return nil
}

// SupportsPoE reports whether the port has PoE hardware.
func (p SwitchPortDetails) SupportsPoE() bool {
	return p.Type != PortTypeSFP && p.PoEMode != PoEModeNone
}

// PoEEnabled reports whether PoE output is switched on for the port.
func (p SwitchPortDetails) PoEEnabled() bool {
	return p.PoEMode != PoEModeDisabled && p.PoEMode != PoEModeNone
}

// DefaultName is the name the controller gives a port that was never renamed.
func (p SwitchPortDetails) DefaultName() string {
	return fmt.Sprintf("Port%d", p.Port)
}

// HasCustomName reports whether the port was renamed on the controller.
func (p SwitchPortDetails) HasCustomName() bool {
	return p.Name != "" && p.Name != p.DefaultName()
}

// SwitchPortOverrides holds the port settings to change. Nil fields are left
// untouched.
type SwitchPortOverrides struct {
	EnablePoE *bool
	Name      *string
	Disable   *bool
}

// IsEmpty reports whether no override is set.
func (o SwitchPortOverrides) IsEmpty() bool {
	return o.EnablePoE == nil && o.Name == nil && o.Disable == nil
}

// payload builds the PATCH body for the controller.
func (o SwitchPortOverrides) payload() map[string]any {
	body := map[string]any{
		"profileOverrideEnable": true,
	}
	if o.EnablePoE != nil {
		if *o.EnablePoE {
			body["poe"] = int(PoEModeEnabled)
		} else {
			body["poe"] = int(PoEModeDisabled)
		}
	}
	if o.Name != nil {
		body["name"] = *o.Name
	}
	if o.Disable != nil {
		body["disable"] = *o.Disable
	}
	return body
}

// WithPoE returns overrides that switch PoE on or off.
func WithPoE(enable bool) SwitchPortOverrides {
	return SwitchPortOverrides{EnablePoE: &enable}
}
