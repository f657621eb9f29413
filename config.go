package samillogger

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPVOutputURL     = "http://pvoutput.org/service/r2/addstatus.jsp"
	DefaultUpdateInterval  = 5 * time.Minute
	DefaultTimeout         = 10 * time.Second
	DefaultEnergyTolerance = 200.0 // Wh
)

// Settings is the PVOutput part of the configuration.
type Settings struct {
	Enabled         bool
	APIKey          string
	SystemID        string
	URL             string
	UpdateInterval  time.Duration
	Timeout         time.Duration
	EnergyTolerance float64 // Wh
}

// Configured reports whether a status can be published with these settings.
func (s Settings) Configured() bool {
	return s.Enabled && s.APIKey != "" && s.SystemID != ""
}

// SettingsSource hands out the current PVOutput settings. It is consulted each
// time the publisher is started.
type SettingsSource interface {
	Settings() Settings
}

// StaticSettings is a fixed SettingsSource.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }

// Config wraps the viper config reader.
type Config struct {
	v *viper.Viper
}

// NewConfigReader returns a viper instance with the search path, env binding
// and defaults in place. The file is not read yet.
func NewConfigReader() *viper.Viper {
	configReader := viper.New()
	configReader.SetConfigName("samillogger")
	configReader.AddConfigPath("/etc")
	configReader.AddConfigPath("$HOME/.config")
	configReader.AddConfigPath(".")
	configReader.SetConfigType("yaml")

	configReader.SetEnvPrefix("samillogger")
	configReader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configReader.AutomaticEnv()

	configReader.SetDefault("pvoutput.enabled", true)
	configReader.SetDefault("pvoutput.url", DefaultPVOutputURL)
	configReader.SetDefault("pvoutput.updateInterval", DefaultUpdateInterval)
	configReader.SetDefault("pvoutput.timeout", DefaultTimeout)
	configReader.SetDefault("pvoutput.energyTolerance", DefaultEnergyTolerance)
	configReader.SetDefault("inverter.port", 502)
	configReader.SetDefault("inverter.slaveId", InverterSlaveID)
	configReader.SetDefault("solarmon.pollInterval", 1000)
	configReader.SetDefault("log.level", "info")
	return configReader
}

// LoadConfig reads the config file. An explicit path overrides the search path.
func LoadConfig(path string) (*Config, error) {
	configReader := NewConfigReader()
	if path != "" {
		configReader.SetConfigFile(path)
	}
	if err := configReader.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return &Config{v: configReader}, nil
}

// NewConfig wraps an already populated viper instance.
func NewConfig(v *viper.Viper) *Config {
	return &Config{v: v}
}

func (c *Config) Viper() *viper.Viper { return c.v }

func (c *Config) Settings() Settings {
	return Settings{
		Enabled:         c.v.GetBool("pvoutput.enabled"),
		APIKey:          strings.TrimSpace(c.v.GetString("pvoutput.apiKey")),
		SystemID:        strings.TrimSpace(c.v.GetString("pvoutput.systemId")),
		URL:             c.v.GetString("pvoutput.url"),
		UpdateInterval:  c.v.GetDuration("pvoutput.updateInterval"),
		Timeout:         c.v.GetDuration("pvoutput.timeout"),
		EnergyTolerance: c.v.GetFloat64("pvoutput.energyTolerance"),
	}
}

func (c *Config) InverterAddr() string {
	return fmt.Sprintf("%s:%d", c.v.GetString("inverter.host"), c.v.GetInt("inverter.port"))
}

func (c *Config) InverterSlaveID() byte {
	return byte(c.v.GetInt("inverter.slaveId"))
}

// PollInterval is how long to sleep between inverter polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.v.GetInt("solarmon.pollInterval")) * time.Millisecond
}

func (c *Config) LiveDataFile() string { return c.v.GetString("solarmon.liveDataFile") }

func (c *Config) DBFile() string { return c.v.GetString("solarmon.dbFile") }

func (c *Config) MetricsListen() string { return c.v.GetString("metrics.listen") }

func (c *Config) LogLevel() string { return c.v.GetString("log.level") }

func (c *Config) Debug() bool { return c.v.GetBool("debug") }

// Reload rereads the config file, picking up credentials added since start.
func (c *Config) Reload() error {
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	return nil
}
