// Package config holds the daemon configuration. Values come from built-in
// defaults, then an optional YAML file, then HEARTBEAT_HAPTIC_* environment
// variables. Command-line flags are applied last by main.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/heartbeat-haptic/internal/gpio"
	"github.com/sweeney/heartbeat-haptic/internal/haptic"
	"github.com/sweeney/heartbeat-haptic/internal/health"
	"github.com/sweeney/heartbeat-haptic/internal/pulse"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "HEARTBEAT_HAPTIC"

const (
	SourceMQTT = "mqtt"
	SourceNATS = "nats"
)

// MQTTSource configures the MQTT heart-rate feed.
type MQTTSource struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// NATSSource configures the NATS heart-rate feed.
type NATSSource struct {
	URL      string `yaml:"url"`
	Subject  string `yaml:"subject"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// Events configures the lifecycle event publisher.
type Events struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Haptic configures the vibration motor output.
type Haptic struct {
	Disabled bool          `yaml:"disabled"`
	Pin      int           `yaml:"pin"`
	Width    time.Duration `yaml:"width"`
	Tick     time.Duration `yaml:"tick"`
}

// Button configures the press input.
type Button struct {
	Disabled bool          `yaml:"disabled"`
	Pin      int           `yaml:"pin"`
	Poll     time.Duration `yaml:"poll"`
	Debounce time.Duration `yaml:"debounce"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File is a log file path. Empty logs to stderr.
	File   string `yaml:"file"`
}

// Config is the full daemon configuration.
type Config struct {
	Source      string        `yaml:"source"`
	MQTT        MQTTSource    `yaml:"mqtt"`
	NATS        NATSSource    `yaml:"nats"`
	Events      Events        `yaml:"events"`
	Haptic      Haptic        `yaml:"haptic"`
	Button      Button        `yaml:"button"`
	Log         Log           `yaml:"log"`
	HTTPAddr    string        `yaml:"http_addr"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	TUI         bool          `yaml:"tui"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceMQTT,
		MQTT: MQTTSource{
			Topic:    health.DefaultTopic,
			ClientID: "heartbeat-haptic-feed",
		},
		NATS: NATSSource{
			Subject: health.DefaultSubject,
		},
		Events: Events{
			ClientID:  "heartbeat-haptic",
			Heartbeat: 15 * time.Minute,
		},
		Haptic: Haptic{
			Pin:   haptic.DefaultPin,
			Width: haptic.DefaultPulseWidth,
			Tick:  pulse.DefaultTickPeriod,
		},
		Button: Button{
			Pin:      gpio.DefaultPinButton,
			Poll:     20 * time.Millisecond,
			Debounce: 50 * time.Millisecond,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		HTTPAddr:    ":80",
		CallTimeout: 10 * time.Second,
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadFromEnv overrides fields from environment variables named
// <prefix>_<FIELD>, e.g. HEARTBEAT_HAPTIC_MQTT_BROKER. Unset or empty
// variables leave the field untouched.
func (c *Config) LoadFromEnv(prefix string) error {
	e := envReader{prefix: prefix}

	e.str("SOURCE", &c.Source)
	e.str("MQTT_BROKER", &c.MQTT.Broker)
	e.str("MQTT_TOPIC", &c.MQTT.Topic)
	e.str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	e.str("MQTT_USERNAME", &c.MQTT.Username)
	e.str("MQTT_PASSWORD", &c.MQTT.Password)
	e.str("NATS_URL", &c.NATS.URL)
	e.str("NATS_SUBJECT", &c.NATS.Subject)
	e.str("NATS_USERNAME", &c.NATS.Username)
	e.str("NATS_PASSWORD", &c.NATS.Password)
	e.str("NATS_TOKEN", &c.NATS.Token)
	e.str("EVENTS_BROKER", &c.Events.Broker)
	e.str("EVENTS_CLIENT_ID", &c.Events.ClientID)
	e.duration("EVENTS_HEARTBEAT", &c.Events.Heartbeat)
	e.boolean("HAPTIC_DISABLED", &c.Haptic.Disabled)
	e.integer("HAPTIC_PIN", &c.Haptic.Pin)
	e.duration("HAPTIC_WIDTH", &c.Haptic.Width)
	e.duration("HAPTIC_TICK", &c.Haptic.Tick)
	e.boolean("BUTTON_DISABLED", &c.Button.Disabled)
	e.integer("BUTTON_PIN", &c.Button.Pin)
	e.duration("BUTTON_POLL", &c.Button.Poll)
	e.duration("BUTTON_DEBOUNCE", &c.Button.Debounce)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)
	e.str("LOG_FILE", &c.Log.File)
	e.str("HTTP_ADDR", &c.HTTPAddr)
	e.duration("CALL_TIMEOUT", &c.CallTimeout)
	e.boolean("TUI", &c.TUI)

	return errors.Join(e.errs...)
}

type envReader struct {
	prefix string
	errs   []error
}

func (e *envReader) lookup(name string) (string, string, bool) {
	key := e.prefix + "_" + name
	v := strings.TrimSpace(os.Getenv(key))
	return key, v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if _, v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	key, v, ok := e.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

// SourceAddr returns the address of the configured heart-rate feed.
func (c Config) SourceAddr() string {
	if c.Source == SourceNATS {
		return c.NATS.URL
	}
	return c.MQTT.Broker
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case SourceMQTT, SourceNATS:
	default:
		errs = append(errs, fmt.Errorf("source must be %q or %q, got %q", SourceMQTT, SourceNATS, c.Source))
	}
	if c.Source == SourceMQTT && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic must not be empty"))
	}
	if c.Source == SourceNATS && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats.subject must not be empty"))
	}
	if c.Haptic.Tick <= 0 {
		errs = append(errs, fmt.Errorf("haptic.tick must be positive, got %v", c.Haptic.Tick))
	}
	if c.Haptic.Width <= 0 {
		errs = append(errs, fmt.Errorf("haptic.width must be positive, got %v", c.Haptic.Width))
	}
	if c.Button.Poll <= 0 {
		errs = append(errs, fmt.Errorf("button.poll must be positive, got %v", c.Button.Poll))
	}
	if c.Button.Debounce < 0 {
		errs = append(errs, fmt.Errorf("button.debounce must not be negative, got %v", c.Button.Debounce))
	}
	if c.Events.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("events.heartbeat must not be negative, got %v", c.Events.Heartbeat))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call_timeout must be positive, got %v", c.CallTimeout))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
