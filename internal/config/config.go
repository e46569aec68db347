package config

import (
	"flag"
	"os"
	"strings"

	"codeberg.org/mutker/sensornode/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const DefaultLogLevel = "info"

type Config struct {
	Interface         string
	SSID              string
	PSK               string
	Host              string
	Port              int
	Path              string
	NodeID            string `mapstructure:"node_id"`
	SampleInterval    int    `mapstructure:"sample_interval"`    // milliseconds
	ForwardInterval   int    `mapstructure:"forward_interval"`   // milliseconds
	IndicatorInterval int    `mapstructure:"indicator_interval"` // milliseconds
	BufferCapacity    int    `mapstructure:"buffer_capacity"`
	BatchSize         int    `mapstructure:"batch_size"`
	I2CBus            string `mapstructure:"i2c_bus"`
	LEDPin            string `mapstructure:"led_pin"`
	PowerPin          string `mapstructure:"power_pin"`
	LogLevel          string `mapstructure:"log_level"`
	Metrics           bool
	MetricsDB         string `mapstructure:"metrics_db"`
	Debug             bool
	Verbose           bool
}

func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	setDefaults(v)

	fs := flag.NewFlagSet("sensornode", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	debug := fs.Bool("debug", false, "Enable debugging mode")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warning, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v.SetConfigName("sensornode")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")

	// An explicit config path (flag or environment) wins over the search path
	if *configPath == "" {
		*configPath = os.Getenv("SENSORNODE_CONFIG")
	}
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if *debug {
		v.Set("debug", true)
	}
	if *verbose {
		v.Set("verbose", true)
	}
	if *logLevel != "" {
		v.Set("log_level", *logLevel)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interface", "wlan0")
	v.SetDefault("ssid", "")
	v.SetDefault("psk", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8000)
	v.SetDefault("path", "/")
	v.SetDefault("node_id", "feather")
	v.SetDefault("sample_interval", 10)
	v.SetDefault("forward_interval", 100)
	v.SetDefault("indicator_interval", 200)
	v.SetDefault("buffer_capacity", 128)
	v.SetDefault("batch_size", 100)
	v.SetDefault("i2c_bus", "")
	v.SetDefault("led_pin", "GPIO13")
	v.SetDefault("power_pin", "GPIO2")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", "/var/lib/sensornode/metrics.db")
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Port < 1 || c.Port > 65535 {
		return errFactory.WithData(errors.ErrInvalidConfig, "port out of range")
	}
	if c.Host == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "host must not be empty")
	}
	if c.NodeID == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "node_id must not be empty")
	}
	if c.SampleInterval <= 0 || c.ForwardInterval <= 0 || c.IndicatorInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "intervals must be positive")
	}
	if c.BufferCapacity <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "buffer_capacity must be positive")
	}
	if c.BatchSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "batch_size must be positive")
	}
	if !isValidLogLevel(c.LogLevel) {
		return errFactory.New(errors.ErrInvalidLogLevel)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warning", "error":
		return true
	default:
		return false
	}
}

// ApplyLogLevel applies the configured level to the global logger.
// logger.Init resets the global level to its defaults, so this must be
// called after it.
func (c *Config) ApplyLogLevel() {
	if c.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if c.Verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
}
