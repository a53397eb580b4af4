package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// MockConfig implements Configurable for testing
type MockConfig struct {
	ConfigFile string
	TestValue  string
	Loaded     bool
	FromEnv    string
}

func (m *MockConfig) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&m.ConfigFile, "config", "", "Config file")
	fs.StringVar(&m.TestValue, "test-value", "default", "Test value")
}

func (m *MockConfig) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	m.Loaded = true
	m.FromEnv = os.Getenv("OMADA_POE_CLI_TEST")
	return nil
}

// MockHandler implements CommandHandler for testing
type MockHandler struct {
	StartCalled bool
	StartError  error
}

func (m *MockHandler) Start(ctx context.Context, config Configurable) error {
	m.StartCalled = true
	return m.StartError
}

func newTestCLI() (*BaseCLI, *bytes.Buffer) {
	var stdout bytes.Buffer
	return NewBaseCLI("omada-poe", &stdout, os.Stderr), &stdout
}

func TestParseArgsStandard_Version(t *testing.T) {
	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cmdArgs, err := cli.ParseArgsStandardWithFlagSet([]string{"--version"}, func() Configurable { return &MockConfig{} }, fs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cmdArgs.Command != "version" {
		t.Errorf("Expected command 'version', got '%s'", cmdArgs.Command)
	}
	if cmdArgs.Config.(*MockConfig).Loaded {
		t.Error("Config should not be loaded for version command")
	}
}

func TestParseArgsStandard_Start(t *testing.T) {
	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	args := []string{"--test-value", "custom", "--env-file", ""}
	cmdArgs, err := cli.ParseArgsStandardWithFlagSet(args, func() Configurable { return &MockConfig{} }, fs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cmdArgs.Command != "start" {
		t.Errorf("Expected command 'start', got '%s'", cmdArgs.Command)
	}

	config, ok := cmdArgs.Config.(*MockConfig)
	if !ok {
		t.Fatal("Config is not of expected type")
	}
	if config.TestValue != "custom" {
		t.Errorf("Expected TestValue 'custom', got '%s'", config.TestValue)
	}
	if !config.Loaded {
		t.Error("Expected config to be loaded")
	}
}

func TestParseArgsStandard_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("OMADA_POE_CLI_TEST=from-file\n"), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	os.Unsetenv("OMADA_POE_CLI_TEST")
	t.Cleanup(func() { os.Unsetenv("OMADA_POE_CLI_TEST") })

	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	cmdArgs, err := cli.ParseArgsStandardWithFlagSet([]string{"--env-file", envFile}, func() Configurable { return &MockConfig{} }, fs)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := cmdArgs.Config.(*MockConfig).FromEnv; got != "from-file" {
		t.Errorf("Expected variable from env file, got '%s'", got)
	}
}

func TestParseArgsStandard_MissingEnvFile(t *testing.T) {
	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	missing := filepath.Join(t.TempDir(), "missing.env")
	_, err := cli.ParseArgsStandardWithFlagSet([]string{"--env-file", missing}, func() Configurable { return &MockConfig{} }, fs)
	if err == nil {
		t.Fatal("Expected error for explicitly named env file that does not exist")
	}
}

func TestParseArgsStandard_BadFlag(t *testing.T) {
	cli, _ := newTestCLI()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})

	if _, err := cli.ParseArgsStandardWithFlagSet([]string{"--no-such-flag"}, func() Configurable { return &MockConfig{} }, fs); err == nil {
		t.Fatal("Expected error for unknown flag")
	}
}

func TestExecute_Version(t *testing.T) {
	cli, stdout := newTestCLI()
	handler := &MockHandler{}

	cmdArgs := &CommandArgs{
		Command: "version",
		Config:  &MockConfig{},
	}

	if err := cli.Execute(context.Background(), cmdArgs, handler); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if handler.StartCalled {
		t.Error("Start should not have been called for version command")
	}
	if !strings.HasPrefix(stdout.String(), "omada-poe ") {
		t.Errorf("Unexpected version output: %q", stdout.String())
	}
}

func TestExecute_Start(t *testing.T) {
	cli, _ := newTestCLI()
	handler := &MockHandler{}

	cmdArgs := &CommandArgs{
		Command: "start",
		Config:  &MockConfig{},
	}

	if err := cli.Execute(context.Background(), cmdArgs, handler); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !handler.StartCalled {
		t.Error("Start should have been called for start command")
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	cli, _ := newTestCLI()
	handler := &MockHandler{}

	cmdArgs := &CommandArgs{
		Command: "unknown",
		Config:  &MockConfig{},
	}

	if err := cli.Execute(context.Background(), cmdArgs, handler); err == nil {
		t.Fatal("Expected error for unknown command")
	}

	if handler.StartCalled {
		t.Error("Start should not have been called for unknown command")
	}
}
