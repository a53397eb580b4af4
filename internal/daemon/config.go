// Package daemon wires the controller client, entity hub, registry store,
// MQTT bridge and API server into the omada-poe service.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/larsks/omada-poe/internal/api"
	"github.com/larsks/omada-poe/internal/config"
	"github.com/larsks/omada-poe/internal/coordinator"
	"github.com/larsks/omada-poe/internal/mqtt"
	"github.com/larsks/omada-poe/internal/omada"
	"github.com/spf13/pflag"
)

const (
	defaultListenPort = 8080
	defaultSite       = "Default"
	defaultTimeout    = 10 * time.Second
)

type ControllerConfig struct {
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Site      string        `mapstructure:"site"`
	VerifySSL bool          `mapstructure:"verify-ssl"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MQTTConfig struct {
	Server string `mapstructure:"server"`
	Prefix string `mapstructure:"prefix"`
}

// Config holds the omada-poe configuration
type Config struct {
	ConfigFile     string           `mapstructure:"config-file"`
	Controller     ControllerConfig `mapstructure:"controller"`
	PollInterval   time.Duration    `mapstructure:"poll-interval"`
	ListenAddress  string           `mapstructure:"listen-address"`
	ListenPort     int              `mapstructure:"listen-port"`
	AllowedOrigins []string         `mapstructure:"allowed-origins"`
	RegistryDB     string           `mapstructure:"registry-db"`
	MQTT           MQTTConfig       `mapstructure:"mqtt"`
}

func getDefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "omada-poe", "omada-poe.toml")
}

func getDefaultRegistryDB() string {
	return filepath.Join(xdg.DataHome, "omada-poe", "registry.db")
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Site:      defaultSite,
			VerifySSL: true,
			Timeout:   defaultTimeout,
		},
		PollInterval: coordinator.DefaultInterval,
		ListenPort:   defaultListenPort,
		RegistryDB:   getDefaultRegistryDB(),
		MQTT: MQTTConfig{
			Prefix: mqtt.DefaultPrefix,
		},
	}
}

// AddFlags adds command-line flags for all configuration options
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", getDefaultConfigFile(), "Config file to use")
	fs.StringVar(&c.Controller.URL, "controller.url", c.Controller.URL, "Omada controller URL (env OMADA_URL)")
	fs.StringVar(&c.Controller.Username, "controller.username", c.Controller.Username, "Controller username (env OMADA_USERNAME)")
	fs.StringVar(&c.Controller.Password, "controller.password", c.Controller.Password, "Controller password (env OMADA_PASSWORD)")
	fs.StringVar(&c.Controller.Site, "controller.site", c.Controller.Site, "Controller site name")
	fs.BoolVar(&c.Controller.VerifySSL, "controller.verify-ssl", c.Controller.VerifySSL, "Verify the controller TLS certificate")
	fs.DurationVar(&c.Controller.Timeout, "controller.timeout", c.Controller.Timeout, "Controller request timeout")
	fs.DurationVarP(&c.PollInterval, "poll-interval", "i", c.PollInterval, "How often to poll switch ports")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Listen address for http server")
	fs.IntVar(&c.ListenPort, "listen-port", c.ListenPort, "Listen port for http server")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Origins allowed to call the API (default any)")
	fs.StringVar(&c.RegistryDB, "registry-db", c.RegistryDB, "Path of the entity registry database")
	fs.StringVar(&c.MQTT.Server, "mqtt.server", c.MQTT.Server, "MQTT server URL (mqtt://host:port); empty disables MQTT")
	fs.StringVar(&c.MQTT.Prefix, "mqtt.prefix", c.MQTT.Prefix, "MQTT topic prefix")
}

// LoadConfigWithFlagSet loads configuration with proper precedence using a custom flag set
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	explicitConfigFile := fs != nil && fs.Changed("config")

	if c.ConfigFile != "" {
		if _, err := os.Stat(c.ConfigFile); os.IsNotExist(err) {
			if explicitConfigFile {
				return fmt.Errorf("%w: %s", ErrConfigFileNotFound, c.ConfigFile)
			}
			c.ConfigFile = ""
		}
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(map[string]any{
		"controller.url":        os.Getenv("OMADA_URL"),
		"controller.username":   os.Getenv("OMADA_USERNAME"),
		"controller.password":   os.Getenv("OMADA_PASSWORD"),
		"controller.site":       defaultSite,
		"controller.verify-ssl": true,
		"controller.timeout":    defaultTimeout,
		"poll-interval":         coordinator.DefaultInterval,
		"listen-address":        "",
		"listen-port":           defaultListenPort,
		"allowed-origins":       []string{},
		"registry-db":           getDefaultRegistryDB(),
		"mqtt.server":           "",
		"mqtt.prefix":           mqtt.DefaultPrefix,
	})

	return loader.LoadConfigWithFlagSet(c, fs)
}

// Validate checks that the configuration can be used to start the service.
func (c *Config) Validate() error {
	if c.Controller.URL == "" {
		return ErrMissingControllerURL
	}
	if c.Controller.Username == "" || c.Controller.Password == "" {
		return ErrMissingCredentials
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPollInterval, c.PollInterval)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidListenPort, c.ListenPort)
	}
	return nil
}

func (c *Config) clientConfig() omada.Config {
	return omada.Config{
		URL:       c.Controller.URL,
		Username:  c.Controller.Username,
		Password:  c.Controller.Password,
		VerifySSL: c.Controller.VerifySSL,
		Timeout:   c.Controller.Timeout,
	}
}

func (c *Config) apiConfig() api.Config {
	return api.Config{
		ListenAddress:  c.ListenAddress,
		ListenPort:     c.ListenPort,
		AllowedOrigins: c.AllowedOrigins,
	}
}
