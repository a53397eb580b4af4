package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/adrg/xdg"
	"github.com/larsks/omada-poe/internal/config"
	"github.com/larsks/omada-poe/internal/hub"
	_ "github.com/larsks/omada-poe/internal/logsetup"
	"github.com/larsks/omada-poe/internal/version"
	"github.com/spf13/pflag"
)

const (
	defaultServerURL = "http://localhost:8080"
)

type APIResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type StateRequest struct {
	State string `json:"state"`
}

type Config struct {
	ServerURL  string        `mapstructure:"server-url"`
	ConfigFile string        `mapstructure:"config-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func getDefaultServerURL() string {
	if url := os.Getenv("OMADA_POE_SERVER_URL"); url != "" {
		return url
	}
	return defaultServerURL
}

func getDefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "omada-poe", "poectl.toml")
}

func NewConfig() *Config {
	return &Config{
		ServerURL: getDefaultServerURL(),
		Timeout:   30 * time.Second,
	}
}

func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", getDefaultConfigFile(), "Config file to use")
	fs.StringVar(&c.ServerURL, "server-url", c.ServerURL, "API server URL (env OMADA_POE_SERVER_URL)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Request timeout")
}

func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	if c.ConfigFile != "" {
		if _, err := os.Stat(c.ConfigFile); os.IsNotExist(err) {
			if fs.Changed("config") {
				return fmt.Errorf("config file not found: %s", c.ConfigFile)
			}
			c.ConfigFile = ""
		}
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(map[string]any{
		"server-url": getDefaultServerURL(),
		"timeout":    30 * time.Second,
	})

	return loader.LoadConfigWithFlagSet(c, fs)
}

// HTTPClient interface for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CLI represents the command line interface
type CLI struct {
	config     *Config
	httpClient HTTPClient
	stdout     io.Writer
	stderr     io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(cfg *Config, httpClient HTTPClient, stdout, stderr io.Writer) *CLI {
	return &CLI{
		config:     cfg,
		httpClient: httpClient,
		stdout:     stdout,
		stderr:     stderr,
	}
}

// CommandArgs represents parsed command line arguments
type CommandArgs struct {
	Command string
	Args    []string
	Config  *Config
}

// ParseArgsWithFlagSet parses command line arguments with a custom flag set (for testing)
func ParseArgsWithFlagSet(args []string, fs *pflag.FlagSet) (*CommandArgs, error) {
	versionFlag := fs.Bool("version", false, "Show version and exit")
	helpFlag := fs.BoolP("help", "h", false, "Show help")

	cfg := NewConfig()
	cfg.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *versionFlag {
		return &CommandArgs{Command: "version", Config: cfg}, nil
	}

	remainingArgs := fs.Args()
	if *helpFlag || len(remainingArgs) == 0 {
		return &CommandArgs{Command: "help", Config: cfg}, nil
	}

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &CommandArgs{
		Command: remainingArgs[0],
		Args:    remainingArgs[1:],
		Config:  cfg,
	}, nil
}

// Execute runs the specified command
func (c *CLI) Execute(cmdArgs *CommandArgs) error {
	switch cmdArgs.Command {
	case "version":
		version.Fprint(c.stdout, "poectl")
		return nil
	case "help":
		c.showHelp()
		return nil
	case "list":
		return c.cmdList(cmdArgs.Args)
	case "status":
		return c.cmdStatus(cmdArgs.Args)
	case "on", "off", "toggle":
		return c.cmdSet(cmdArgs.Command, cmdArgs.Args)
	case "refresh":
		return c.cmdRefresh(cmdArgs.Args)
	default:
		return fmt.Errorf("unknown command: %s", cmdArgs.Command)
	}
}

func (c *CLI) showHelp() {
	//nolint:errcheck
	fmt.Fprintf(c.stdout, `poectl - Command line tool for switching PoE on Omada switch ports

Usage: poectl [flags] <command> [arguments]

Commands:
  list                 List all PoE switches
  status <entity_id>   Show one PoE switch
  on <entity_id>       Enable PoE
  off <entity_id>      Disable PoE
  toggle <entity_id>   Toggle PoE
  refresh              Poll the controller now
  help                 Show this help
  version              Show version information

Flags:
  --config string       Config file to use (default "%s")
  -h, --help            Show help
  --server-url string   API server URL (default "%s")
  --timeout duration    Request timeout (default 30s)
  --version             Show version and exit
`, getDefaultConfigFile(), defaultServerURL)
}

// entityID accepts both "switch.name" and the bare object id.
func entityID(arg string) string {
	if strings.Contains(arg, ".") {
		return arg
	}
	return hub.DomainSwitch + "." + arg
}

func (c *CLI) printStates(states []hub.State) {
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tSTATE\tNAME") //nolint:errcheck
	for _, s := range states {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.EntityID, s.State, s.Name) //nolint:errcheck
	}
	w.Flush() //nolint:errcheck
}

func (c *CLI) cmdList(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("list command takes no arguments")
	}

	var states []hub.State
	if err := c.callAPI("GET", "/entities", nil, &states); err != nil {
		return err
	}

	c.printStates(states)
	return nil
}

func (c *CLI) cmdStatus(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("status command requires exactly one entity argument")
	}

	var state hub.State
	if err := c.callAPI("GET", "/entities/"+entityID(args[0]), nil, &state); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Entity: %s\n", state.EntityID) //nolint:errcheck
	fmt.Fprintf(c.stdout, "Name: %s\n", state.Name)       //nolint:errcheck
	fmt.Fprintf(c.stdout, "State: %s\n", state.State)     //nolint:errcheck

	fmt.Fprintf(c.stdout, "Last changed: %s\n", state.LastChanged.Format(time.RFC3339)) //nolint:errcheck
	for _, key := range []string{"device_mac", "port", "port_id", "poe_power_w", "link"} {
		if value, ok := state.Attributes[key]; ok {
			fmt.Fprintf(c.stdout, "  %s: %v\n", key, value) //nolint:errcheck
		}
	}
	return nil
}

func (c *CLI) cmdSet(command string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s command requires exactly one entity argument", command)
	}

	body, err := json.Marshal(StateRequest{State: command})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var state hub.State
	if err := c.callAPI("POST", "/entities/"+entityID(args[0]), body, &state); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s is %s\n", state.EntityID, state.State) //nolint:errcheck
	return nil
}

func (c *CLI) cmdRefresh(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("refresh command takes no arguments")
	}

	var states []hub.State
	if err := c.callAPI("POST", "/refresh", nil, &states); err != nil {
		return err
	}

	c.printStates(states)
	return nil
}

// callAPI makes a request and decodes the data of an "ok" response into out.
func (c *CLI) callAPI(method, path string, body []byte, out any) error {
	url := strings.TrimSuffix(c.config.ServerURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("API request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Status != "ok" {
		return fmt.Errorf("API error: %s", apiResp.Message)
	}

	if out != nil && len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return fmt.Errorf("failed to parse response data: %w", err)
		}
	}
	return nil
}

func main() {
	cmdArgs, err := ParseArgsWithFlagSet(os.Args[1:], pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}

	cli := NewCLI(cmdArgs.Config, &http.Client{Timeout: cmdArgs.Config.Timeout}, os.Stdout, os.Stderr)

	if err := cli.Execute(cmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:errcheck
		os.Exit(1)
	}
}
