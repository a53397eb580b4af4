package omada

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

// Site is a controller site. It implements SiteClient.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	client *Client
}

// Site looks up a site by name. An empty name selects the controller's
// "Default" site.
func (c *Client) Site(ctx context.Context, name string) (*Site, error) {
	if name == "" {
		name = "Default"
	}

	var page struct {
		Data []Site `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/sites?currentPage=1&currentPageSize=1000", nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	for _, s := range page.Data {
		if s.Name == name {
			site := s
			site.client = c
			return &site, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, name)
}

func (s *Site) path(format string, args ...any) string {
	return fmt.Sprintf("/sites/%s", url.PathEscape(s.ID)) + fmt.Sprintf(format, args...)
}

// GetSwitches returns every switch adopted on the site.
func (s *Site) GetSwitches(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := s.client.call(ctx, http.MethodGet, s.path("/devices"), nil, &devices); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	switches := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Type == "switch" {
			switches = append(switches, d)
		}
	}
	return switches, nil
}

// GetSwitchPorts returns the ports of a switch.
func (s *Site) GetSwitchPorts(ctx context.Context, device Device) ([]SwitchPortDetails, error) {
	var ports []SwitchPortDetails
	if err := s.client.call(ctx, http.MethodGet, s.path("/switches/%s/ports", url.PathEscape(device.MAC)), nil, &ports); err != nil {
		return nil, fmt.Errorf("failed to get ports for switch %s: %w", device.MAC, err)
	}
	return ports, nil
}

// GetSwitchPort returns a single port of a switch.
func (s *Site) GetSwitchPort(ctx context.Context, device Device, portID string) (*SwitchPortDetails, error) {
	ports, err := s.GetSwitchPorts(ctx, device)
	if err != nil {
		return nil, err
	}
	for _, p := range ports {
		if p.PortID == portID {
			port := p
			return &port, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on switch %s", ErrPortNotFound, portID, device.MAC)
}

// UpdateSwitchPort applies overrides to a port and returns the port as the
// controller reports it afterwards. If the update is accepted but the port
// cannot be read back, it returns nil details and no error.
func (s *Site) UpdateSwitchPort(ctx context.Context, device Device, port SwitchPortDetails, overrides SwitchPortOverrides) (*SwitchPortDetails, error) {
	if overrides.IsEmpty() {
		return nil, ErrNoOverrides
	}

	path := s.path("/switches/%s/ports/%s", url.PathEscape(device.MAC), url.PathEscape(port.PortID))
	if err := s.client.call(ctx, http.MethodPatch, path, overrides.payload(), nil); err != nil {
		return nil, fmt.Errorf("failed to update port %d on switch %s: %w", port.Port, device.MAC, err)
	}

	updated, err := s.GetSwitchPort(ctx, device, port.PortID)
	if err != nil {
		log.Printf("updated port %d on switch %s but failed to read it back: %v", port.Port, device.MAC, err)
		return nil, nil
	}
	return updated, nil
}
