package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configurable represents a type that can be configured via flags and config files.
type Configurable interface {
	// AddFlags should add command-line flags to the provided FlagSet
	AddFlags(fs *pflag.FlagSet)
}

// ConfigLoader provides common configuration loading functionality.
type ConfigLoader struct {
	configFile   string
	defaults     map[string]any
	preserveFile bool
	strictMode   bool
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		defaults:     make(map[string]any),
		preserveFile: true,
		strictMode:   false,
	}
}

// SetConfigFile sets the configuration file path.
func (cl *ConfigLoader) SetConfigFile(configFile string) {
	cl.configFile = configFile
}

// SetDefault sets a default value for a configuration key.
func (cl *ConfigLoader) SetDefault(key string, value any) {
	cl.defaults[key] = value
}

// SetDefaults sets multiple default values at once.
func (cl *ConfigLoader) SetDefaults(defaults map[string]any) {
	for key, value := range defaults {
		cl.defaults[key] = value
	}
}

// SetStrictMode enables or disables strict mode for configuration validation.
// In strict mode, unknown configuration fields will cause an error.
func (cl *ConfigLoader) SetStrictMode(strict bool) {
	cl.strictMode = strict
}

// LoadConfig loads configuration using the flags on pflag.CommandLine.
func (cl *ConfigLoader) LoadConfig(config any) error {
	return cl.LoadConfigWithFlagSet(config, pflag.CommandLine)
}

// LoadConfigWithFlagSet loads configuration with proper precedence:
// defaults < config file < flags explicitly set on fs.
// Flag names are used as keys, so --controller.url sets controller.url.
func (cl *ConfigLoader) LoadConfigWithFlagSet(config any, fs *pflag.FlagSet) error {
	var originalConfigFile string
	if cl.preserveFile && cl.configFile != "" {
		originalConfigFile = cl.configFile
	}

	v := viper.New()

	for key, value := range cl.defaults {
		v.SetDefault(key, value)
	}

	if cl.configFile != "" {
		v.SetConfigFile(cl.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("%w %s: %v", ErrReadConfigFile, cl.configFile, err)
		}
		expandEnvironment(v)
	}

	if fs != nil {
		fs.Visit(func(flag *pflag.Flag) {
			v.Set(flag.Name, flagValue(flag))
		})
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if cl.strictMode {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           config,
			ErrorUnused:      true,
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
			DecodeHook:       hook,
		})
		if err != nil {
			return fmt.Errorf("%w: failed to create decoder: %v", ErrDecodeConfig, err)
		}

		if err := decoder.Decode(v.AllSettings()); err != nil {
			if strings.Contains(err.Error(), "has invalid keys:") {
				msg := err.Error()
				if cl.configFile != "" {
					// mapstructure reports the root as ''
					msg = strings.Replace(msg, "* ''", fmt.Sprintf("* '%s'", cl.configFile), 1)
				}
				return fmt.Errorf("%w: %s", ErrUnknownConfigKeys, msg)
			}
			return fmt.Errorf("%w: %v", ErrDecodeConfig, err)
		}
	} else {
		if err := v.Unmarshal(config, viper.DecodeHook(hook)); err != nil {
			return fmt.Errorf("%w: %v", ErrDecodeConfig, err)
		}
	}

	// viper clears ConfigFile when the file does not mention it
	if originalConfigFile != "" {
		_ = cl.setConfigFileField(config, originalConfigFile)
	}

	return nil
}

// flagValue converts a flag to a typed value so viper and mapstructure see
// numbers and lists rather than their string forms.
func flagValue(flag *pflag.Flag) any {
	s := flag.Value.String()

	switch flag.Value.Type() {
	case "uint", "uint8", "uint16", "uint32", "uint64":
		if val, err := strconv.ParseUint(s, 10, 64); err == nil {
			return val
		}
	case "int", "int8", "int16", "int32", "int64":
		if val, err := strconv.ParseInt(s, 10, 64); err == nil {
			return val
		}
	case "bool":
		if val, err := strconv.ParseBool(s); err == nil {
			return val
		}
	case "float32", "float64":
		if val, err := strconv.ParseFloat(s, 64); err == nil {
			return val
		}
	case "stringSlice", "stringArray":
		if sliceFlag, ok := flag.Value.(pflag.SliceValue); ok {
			return sliceFlag.GetSlice()
		}
	}

	return s
}

// expandEnvironment replaces $VAR and ${VAR} in string settings read from
// the config file. References to unset variables are left as written.
func expandEnvironment(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch value := v.Get(key).(type) {
		case string:
			if strings.Contains(value, "$") {
				v.Set(key, expandString(value))
			}
		case []any:
			expanded := make([]any, len(value))
			for i, item := range value {
				if s, ok := item.(string); ok {
					expanded[i] = expandString(s)
				} else {
					expanded[i] = item
				}
			}
			v.Set(key, expanded)
		}
	}
}

func expandString(s string) string {
	return os.Expand(s, func(name string) string {
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return "${" + name + "}"
	})
}

// setConfigFileField attempts to set a ConfigFile field on the config struct using reflection.
func (cl *ConfigLoader) setConfigFileField(config any, configFile string) error {
	v := reflect.ValueOf(config)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("%w: got %T", ErrTargetNotPointer, config)
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %s", ErrTargetNotStruct, v.Kind())
	}

	field := v.FieldByName("ConfigFile")
	if !field.IsValid() {
		return nil
	}

	if !field.CanSet() {
		return fmt.Errorf("%w: ConfigFile", ErrConfigFileFieldReadOnly)
	}

	if field.Kind() != reflect.String {
		return fmt.Errorf("%w: ConfigFile is %s", ErrConfigFileFieldType, field.Kind())
	}

	field.SetString(configFile)
	return nil
}
