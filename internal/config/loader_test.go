package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type ControllerConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Site     string `mapstructure:"site"`
}

// TestConfig is a sample config struct for testing
type TestConfig struct {
	ConfigFile    string           `mapstructure:"config-file"`
	ListenAddress string           `mapstructure:"listen-address"`
	ListenPort    int              `mapstructure:"listen-port"`
	PollInterval  time.Duration    `mapstructure:"poll-interval"`
	Controller    ControllerConfig `mapstructure:"controller"`
}

func (c *TestConfig) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Config file to use")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Listen address")
	fs.IntVar(&c.ListenPort, "listen-port", c.ListenPort, "Listen port")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Poll interval")
	fs.StringVar(&c.Controller.URL, "controller.url", c.Controller.URL, "Controller URL")
	fs.StringVar(&c.Controller.Site, "controller.site", c.Controller.Site, "Site name")
}

var testDefaults = map[string]any{
	"listen-address":  "127.0.0.1",
	"listen-port":     8080,
	"poll-interval":   10 * time.Minute,
	"controller.site": "Default",
}

func loadTestConfig(t *testing.T, configFile string, args ...string) (*TestConfig, error) {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config := &TestConfig{}
	config.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	loader := NewConfigLoader()
	loader.SetConfigFile(configFile)
	loader.SetDefaults(testDefaults)
	return config, loader.LoadConfigWithFlagSet(config, fs)
}

func TestConfigLoader_Defaults(t *testing.T) {
	config, err := loadTestConfig(t, "")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ListenAddress != "127.0.0.1" {
		t.Errorf("Expected ListenAddress '127.0.0.1', got '%s'", config.ListenAddress)
	}
	if config.ListenPort != 8080 {
		t.Errorf("Expected ListenPort 8080, got %d", config.ListenPort)
	}
	if config.PollInterval != 10*time.Minute {
		t.Errorf("Expected PollInterval 10m, got %s", config.PollInterval)
	}
	if config.Controller.Site != "Default" {
		t.Errorf("Expected Controller.Site 'Default', got '%s'", config.Controller.Site)
	}
}

func TestConfigLoader_LoadConfig(t *testing.T) {
	configFile := filepath.Join("testdata", "test-config.toml")
	config, err := loadTestConfig(t, configFile)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ListenAddress != "192.168.1.100" {
		t.Errorf("Expected ListenAddress to be '192.168.1.100', got '%s'", config.ListenAddress)
	}
	if config.ListenPort != 9090 {
		t.Errorf("Expected ListenPort to be 9090, got %d", config.ListenPort)
	}
	if config.PollInterval != 5*time.Minute {
		t.Errorf("Expected PollInterval to be 5m, got %s", config.PollInterval)
	}
	if config.Controller.URL != "https://omada.example.com:8043" {
		t.Errorf("Expected Controller.URL from file, got '%s'", config.Controller.URL)
	}
	if config.Controller.Site != "Lab" {
		t.Errorf("Expected Controller.Site 'Lab', got '%s'", config.Controller.Site)
	}
	if config.ConfigFile != configFile {
		t.Errorf("Expected ConfigFile to be preserved as '%s', got '%s'", configFile, config.ConfigFile)
	}
}

func TestConfigLoader_FlagPrecedence(t *testing.T) {
	config, err := loadTestConfig(t,
		filepath.Join("testdata", "flag-precedence-config.toml"),
		"--listen-port", "9999",
		"--controller.site", "Flag Site",
		"--poll-interval", "30s",
	)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// explicit flags win over the file
	if config.ListenPort != 9999 {
		t.Errorf("Expected ListenPort from flag (9999), got %d", config.ListenPort)
	}
	if config.Controller.Site != "Flag Site" {
		t.Errorf("Expected Controller.Site from flag, got '%s'", config.Controller.Site)
	}
	if config.PollInterval != 30*time.Second {
		t.Errorf("Expected PollInterval from flag (30s), got %s", config.PollInterval)
	}

	// unset flags do not clobber the file
	if config.ListenAddress != "10.0.0.1" {
		t.Errorf("Expected ListenAddress from file (10.0.0.1), got '%s'", config.ListenAddress)
	}
	if config.Controller.URL != "https://from-file.example.com" {
		t.Errorf("Expected Controller.URL from file, got '%s'", config.Controller.URL)
	}
}

func TestConfigLoader_EnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_OMADA_HOST", "0.0.0.0")
	t.Setenv("TEST_OMADA_USERNAME", "operator")
	t.Setenv("TEST_OMADA_PASSWORD", "secret123")
	os.Unsetenv("TEST_OMADA_UNSET")

	config, err := loadTestConfig(t, filepath.Join("testdata", "env-config.toml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.ListenAddress != "0.0.0.0" {
		t.Errorf("Expected ListenAddress expanded from $TEST_OMADA_HOST, got '%s'", config.ListenAddress)
	}
	if config.Controller.Username != "operator" {
		t.Errorf("Expected Controller.Username 'operator', got '%s'", config.Controller.Username)
	}
	if config.Controller.Password != "secret123" {
		t.Errorf("Expected Controller.Password 'secret123', got '%s'", config.Controller.Password)
	}
	if config.Controller.Site != "${TEST_OMADA_UNSET}" {
		t.Errorf("Expected unset variable to be kept, got '%s'", config.Controller.Site)
	}
}

func TestConfigLoader_MissingFile(t *testing.T) {
	_, err := loadTestConfig(t, filepath.Join("testdata", "does-not-exist.toml"))
	if !errors.Is(err, ErrReadConfigFile) {
		t.Errorf("Expected ErrReadConfigFile, got %v", err)
	}
}

func TestConfigLoader_StrictMode(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetConfigFile(filepath.Join("testdata", "strict-config.toml"))
	loader.SetStrictMode(true)

	var config struct {
		ListenPort int `mapstructure:"listen-port"`
	}
	err := loader.LoadConfigWithFlagSet(&config, nil)
	if !errors.Is(err, ErrUnknownConfigKeys) {
		t.Fatalf("Expected ErrUnknownConfigKeys, got %v", err)
	}
	if !strings.Contains(err.Error(), "strict-config.toml") {
		t.Errorf("Expected error to name the config file, got %v", err)
	}

	loader.SetStrictMode(false)
	if err := loader.LoadConfigWithFlagSet(&config, nil); err != nil {
		t.Fatalf("Unexpected error in non-strict mode: %v", err)
	}
	if config.ListenPort != 9090 {
		t.Errorf("Expected ListenPort 9090, got %d", config.ListenPort)
	}
}

func TestConfigLoader_DecodeError(t *testing.T) {
	loader := NewConfigLoader()
	loader.SetDefaults(map[string]any{"listen-port": "not-a-port"})

	var config struct {
		ListenPort int `mapstructure:"listen-port"`
	}
	err := loader.LoadConfigWithFlagSet(&config, nil)
	if !errors.Is(err, ErrDecodeConfig) {
		t.Fatalf("Expected ErrDecodeConfig, got %v", err)
	}
}

func TestSetConfigFileField(t *testing.T) {
	loader := NewConfigLoader()

	var notPointer TestConfig
	if err := loader.setConfigFileField(notPointer, "x"); !errors.Is(err, ErrTargetNotPointer) {
		t.Errorf("Expected ErrTargetNotPointer, got %v", err)
	}

	s := "not a struct"
	if err := loader.setConfigFileField(&s, "x"); !errors.Is(err, ErrTargetNotStruct) {
		t.Errorf("Expected ErrTargetNotStruct, got %v", err)
	}

	var wrongType struct{ ConfigFile int }
	if err := loader.setConfigFileField(&wrongType, "x"); !errors.Is(err, ErrConfigFileFieldType) {
		t.Errorf("Expected ErrConfigFileFieldType, got %v", err)
	}
}
