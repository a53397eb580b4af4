package omada_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/larsks/omada-poe/internal/omada"
	"github.com/larsks/omada-poe/internal/omada/omadatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOmadacID = "c0ffee"

// fakeController is a minimal Omada controller.
type fakeController struct {
	t *testing.T

	mutex       sync.Mutex
	token       string
	logins      int
	expireNext  bool
	failRead    bool
	ports       []map[string]any
	devices     json.RawMessage
	patchBodies []map[string]any
}

func newFakeController(t *testing.T) *fakeController {
	ports, err := omadatest.LoadRawPorts(omadatest.PoESwitchPortsFixture)
	require.NoError(t, err)
	devices, err := omadatest.LoadFixture("devices.json")
	require.NoError(t, err)

	return &fakeController{t: t, ports: ports, devices: devices}
}

func (f *fakeController) reply(w http.ResponseWriter, errorCode int, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"errorCode": errorCode,
		"msg":       "",
		"result":    result,
	})
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if r.URL.Path == "/api/info" {
		f.reply(w, 0, map[string]string{"omadacId": testOmadacID})
		return
	}

	prefix := "/" + testOmadacID + "/api/v2"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	if path == "/login" {
		var creds map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "secret" {
			f.reply(w, -30109, nil)
			return
		}
		f.logins++
		f.token = "token-" + string(rune('0'+f.logins))
		f.reply(w, 0, map[string]string{"token": f.token})
		return
	}

	if r.Header.Get("Csrf-Token") != f.token || f.expireNext {
		f.expireNext = false
		f.reply(w, -1200, nil)
		return
	}

	switch {
	case path == "/sites":
		f.reply(w, 0, map[string]any{
			"totalRows": 2,
			"data": []map[string]string{
				{"id": "site-default", "name": "Default"},
				{"id": "site-lab", "name": "Lab"},
			},
		})
	case path == "/sites/site-default/devices":
		f.reply(w, 0, f.devices)
	case path == "/sites/site-default/switches/54-AF-97-00-00-01/ports":
		if f.failRead {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		f.reply(w, 0, f.ports)
	case strings.HasPrefix(path, "/sites/site-default/switches/54-AF-97-00-00-01/ports/") && r.Method == http.MethodPatch:
		portID := strings.TrimPrefix(path, "/sites/site-default/switches/54-AF-97-00-00-01/ports/")
		var body map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.patchBodies = append(f.patchBodies, body)
		for _, p := range f.ports {
			if p["id"] == portID {
				if poe, ok := body["poe"]; ok {
					p["poe"] = poe
				}
				if name, ok := body["name"]; ok {
					p["name"] = name
				}
				f.reply(w, 0, nil)
				return
			}
		}
		f.reply(w, -39700, nil)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (f *fakeController) loginCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.logins
}

func (f *fakeController) patches() []map[string]any {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]map[string]any(nil), f.patchBodies...)
}

func newTestSite(t *testing.T) (*fakeController, *omada.Client, *omada.Site) {
	fc := newFakeController(t)
	server := httptest.NewServer(fc)
	t.Cleanup(server.Close)

	client, err := omada.NewClient(omada.Config{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	site, err := client.Site(context.Background(), "")
	require.NoError(t, err)
	return fc, client, site
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := omada.NewClient(omada.Config{})
	assert.ErrorIs(t, err, omada.ErrRequestFailed)
}

func TestClient_LoginFailure(t *testing.T) {
	server := httptest.NewServer(newFakeController(t))
	defer server.Close()

	client, err := omada.NewClient(omada.Config{URL: server.URL, Username: "admin", Password: "wrong"})
	require.NoError(t, err)

	err = client.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, omada.ErrLoginFailed)
}

func TestClient_SiteLookup(t *testing.T) {
	_, client, site := newTestSite(t)
	assert.Equal(t, "site-default", site.ID)

	lab, err := client.Site(context.Background(), "Lab")
	require.NoError(t, err)
	assert.Equal(t, "site-lab", lab.ID)

	_, err = client.Site(context.Background(), "Missing")
	assert.ErrorIs(t, err, omada.ErrSiteNotFound)
}

func TestSite_GetSwitches(t *testing.T) {
	_, _, site := newTestSite(t)

	switches, err := site.GetSwitches(context.Background())
	require.NoError(t, err)
	require.Len(t, switches, 1)
	assert.Equal(t, omadatest.PoESwitchMAC, switches[0].MAC)
	assert.Equal(t, "Test PoE Switch", switches[0].Name)
}

func TestSite_GetSwitchPorts(t *testing.T) {
	_, _, site := newTestSite(t)

	ports, err := site.GetSwitchPorts(context.Background(), omada.Device{MAC: omadatest.PoESwitchMAC})
	require.NoError(t, err)
	require.Len(t, ports, 10)

	assert.Equal(t, "000000000000000000000001", ports[0].PortID)
	assert.Equal(t, omada.PoEModeEnabled, ports[0].PoEMode)
	assert.True(t, ports[0].SupportsPoE())
	assert.Equal(t, "Renamed Port", ports[7].Name)
	assert.Equal(t, omada.PortTypeSFP, ports[9].Type)
	assert.Equal(t, omada.PoEModeNone, ports[9].PoEMode)
	assert.False(t, ports[9].SupportsPoE())
}

func TestSite_UpdateSwitchPort(t *testing.T) {
	fc, _, site := newTestSite(t)
	device := omada.Device{MAC: omadatest.PoESwitchMAC}

	ports, err := site.GetSwitchPorts(context.Background(), device)
	require.NoError(t, err)

	updated, err := site.UpdateSwitchPort(context.Background(), device, ports[2], omada.WithPoE(false))
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, ports[2].PortID, updated.PortID)
	assert.Equal(t, omada.PoEModeDisabled, updated.PoEMode)

	patches := fc.patches()
	require.Len(t, patches, 1)
	assert.Equal(t, float64(0), patches[0]["poe"])
	assert.Equal(t, true, patches[0]["profileOverrideEnable"])
	assert.NotContains(t, patches[0], "name")
}

func TestSite_UpdateSwitchPort_ReadBackFails(t *testing.T) {
	fc, _, site := newTestSite(t)
	device := omada.Device{MAC: omadatest.PoESwitchMAC}

	ports, err := site.GetSwitchPorts(context.Background(), device)
	require.NoError(t, err)

	fc.mutex.Lock()
	fc.failRead = true
	fc.mutex.Unlock()

	updated, err := site.UpdateSwitchPort(context.Background(), device, ports[0], omada.WithPoE(false))
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Len(t, fc.patches(), 1)
}

func TestSite_UpdateSwitchPort_NoOverrides(t *testing.T) {
	_, _, site := newTestSite(t)

	_, err := site.UpdateSwitchPort(context.Background(), omada.Device{MAC: omadatest.PoESwitchMAC}, omada.SwitchPortDetails{PortID: "1"}, omada.SwitchPortOverrides{})
	assert.ErrorIs(t, err, omada.ErrNoOverrides)
}

func TestSite_UpdateSwitchPort_UnknownPort(t *testing.T) {
	_, _, site := newTestSite(t)

	_, err := site.UpdateSwitchPort(context.Background(), omada.Device{MAC: omadatest.PoESwitchMAC}, omada.SwitchPortDetails{PortID: "nope"}, omada.WithPoE(true))
	var apiErr *omada.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, -39700, apiErr.Code)
}

func TestClient_ReloginOnExpiredSession(t *testing.T) {
	fc, _, site := newTestSite(t)
	require.Equal(t, 1, fc.loginCount())

	fc.mutex.Lock()
	fc.expireNext = true
	fc.mutex.Unlock()

	ports, err := site.GetSwitchPorts(context.Background(), omada.Device{MAC: omadatest.PoESwitchMAC})
	require.NoError(t, err)
	assert.Len(t, ports, 10)
	assert.Equal(t, 2, fc.loginCount())
}

func TestClient_HTTPError(t *testing.T) {
	_, _, site := newTestSite(t)

	_, err := site.GetSwitchPorts(context.Background(), omada.Device{MAC: "00-00-00-00-00-00"})
	assert.ErrorIs(t, err, omada.ErrUnexpectedStatus)
}
