package omada

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SiteClient is the subset of the controller API used to manage switch ports
// on a single site.
type SiteClient interface {
	GetSwitches(ctx context.Context) ([]Device, error)
	GetSwitchPorts(ctx context.Context, device Device) ([]SwitchPortDetails, error)
	UpdateSwitchPort(ctx context.Context, device Device, port SwitchPortDetails, overrides SwitchPortOverrides) (*SwitchPortDetails, error)
}

// Config holds controller connection settings.
type Config struct {
	URL       string
	Username  string
	Password  string
	VerifySSL bool
	Timeout   time.Duration
}

// envelope is the response wrapper used by every controller endpoint.
type envelope struct {
	ErrorCode int             `json:"errorCode"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// Client talks to an Omada SDN controller over its web API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mutex     sync.Mutex
	omadacID  string
	csrfToken string
}

// NewClient creates a controller client. No request is made until the first
// API call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: controller URL is empty", ErrRequestFailed)
	}

	base := cfg.URL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid controller URL %s: %w", cfg.URL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec
	}

	return &Client{
		baseURL:  strings.TrimSuffix(base, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// String returns a string representation of the client
func (c *Client) String() string {
	return fmt.Sprintf("OmadaClient(%s)", c.baseURL)
}

// Login reads the controller ID and opens a session.
func (c *Client) Login(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	var info struct {
		OmadacID string `json:"omadacId"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/info", nil, "", &info); err != nil {
		return fmt.Errorf("%w: %v", ErrControllerInfo, err)
	}
	if info.OmadacID == "" {
		return fmt.Errorf("%w: empty controller id", ErrControllerInfo)
	}

	var session struct {
		Token string `json:"token"`
	}
	creds := map[string]string{
		"username": c.username,
		"password": c.password,
	}
	loginURL := fmt.Sprintf("%s/%s/api/v2/login", c.baseURL, info.OmadacID)
	if err := c.do(ctx, http.MethodPost, loginURL, creds, "", &session); err != nil {
		return fmt.Errorf("%w for user %s: %v", ErrLoginFailed, c.username, err)
	}

	c.omadacID = info.OmadacID
	c.csrfToken = session.Token
	log.Printf("logged in to omada controller %s", c.baseURL)
	return nil
}

// call performs an authenticated request against a path below
// /{omadacId}/api/v2, logging in first if needed and once more if the
// session has expired.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	c.mutex.Lock()
	if c.csrfToken == "" {
		if err := c.loginLocked(ctx); err != nil {
			c.mutex.Unlock()
			return err
		}
	}
	endpoint := fmt.Sprintf("%s/%s/api/v2%s", c.baseURL, c.omadacID, path)
	token := c.csrfToken
	c.mutex.Unlock()

	err := c.do(ctx, method, endpoint, body, token, out)
	if !isSessionExpired(err) {
		return err
	}

	log.Printf("omada session expired, logging in again")
	c.mutex.Lock()
	if err := c.loginLocked(ctx); err != nil {
		c.mutex.Unlock()
		return err
	}
	endpoint = fmt.Sprintf("%s/%s/api/v2%s", c.baseURL, c.omadacID, path)
	token = c.csrfToken
	c.mutex.Unlock()

	return c.do(ctx, method, endpoint, body, token, out)
}

func isSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == errorCodeSessionExpired
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code == http.StatusUnauthorized
	}
	return false
}

// do sends a single request and decodes the envelope result into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Csrf-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, method: method, endpoint: endpoint}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if env.ErrorCode != 0 {
		return &APIError{Code: env.ErrorCode, Message: env.Msg}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// statusError is returned for non-200 HTTP responses.
type statusError struct {
	code     int
	method   string
	endpoint string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP request failed with status %d", e.method, e.endpoint, e.code)
}

func (e *statusError) Unwrap() error {
	return ErrUnexpectedStatus
}
