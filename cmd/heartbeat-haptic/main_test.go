package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/heartbeat-haptic/internal/config"
	"github.com/sweeney/heartbeat-haptic/internal/health"
	"github.com/sweeney/heartbeat-haptic/internal/logger"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Type != "wifi" || info.IP != "192.168.1.100" || info.Status != "connected" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Gateway != "192.168.1.1" || info.WifiStatus != "connected" || info.SSID != "MyNetwork" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want connected", info.Status)
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, printState, err := loadConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if printState {
		t.Error("printState should default to false")
	}
	if cfg.Haptic.Tick != 100*time.Millisecond {
		t.Errorf("tick: got %v, want 100ms", cfg.Haptic.Tick)
	}
	if cfg.Source != config.SourceMQTT {
		t.Errorf("source: got %q", cfg.Source)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "mqtt:\n  broker: tcp://file:1883\n  topic: file/topic\nhaptic:\n  tick: 200ms\nbutton:\n  poll: 40ms\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HEARTBEAT_HAPTIC_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("HEARTBEAT_HAPTIC_HAPTIC_TICK", "150ms")

	cfg, _, err := loadConfig([]string{"-config", path, "-tick", "50ms", "-print-state"}, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Topic != "file/topic" {
		t.Errorf("topic from file: got %q", cfg.MQTT.Topic)
	}
	if cfg.Button.Poll != 40*time.Millisecond {
		t.Errorf("poll from file: got %v", cfg.Button.Poll)
	}
	if cfg.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("broker from env: got %q", cfg.MQTT.Broker)
	}
	if cfg.Haptic.Tick != 50*time.Millisecond {
		t.Errorf("tick from flag: got %v", cfg.Haptic.Tick)
	}
}

func TestLoadConfigUnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("HEARTBEAT_HAPTIC_SOURCE", "nats")
	t.Setenv("HEARTBEAT_HAPTIC_NATS_URL", "nats://10.0.0.9:4222")

	cfg, _, err := loadConfig([]string{"-debounce", "0s"}, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Source != config.SourceNATS {
		t.Errorf("source: got %q, want nats", cfg.Source)
	}
	if cfg.Button.Debounce != 0 {
		t.Errorf("debounce: got %v, want 0", cfg.Button.Debounce)
	}
	if cfg.SourceAddr() != "nats://10.0.0.9:4222" {
		t.Errorf("source addr: got %q", cfg.SourceAddr())
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	if _, _, err := loadConfig([]string{"-tick", "0s"}, io.Discard); err == nil {
		t.Error("expected validation error for zero tick")
	}
	if _, _, err := loadConfig([]string{"-source", "ble"}, io.Discard); err == nil {
		t.Error("expected validation error for unknown source")
	}
	if _, _, err := loadConfig([]string{"-bogus"}, io.Discard); err == nil {
		t.Error("expected parse error for unknown flag")
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, _, err := loadConfig([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("got %v, want flag.ErrHelp", err)
	}
}

func TestResolveEventsBroker(t *testing.T) {
	cfg := config.Default()
	if got := resolveEventsBroker(cfg); got != "" {
		t.Errorf("no brokers: got %q, want empty", got)
	}
	cfg.MQTT.Broker = "tcp://samples:1883"
	if got := resolveEventsBroker(cfg); got != "tcp://samples:1883" {
		t.Errorf("fallback: got %q", got)
	}
	cfg.Events.Broker = "tcp://events:1883"
	if got := resolveEventsBroker(cfg); got != "tcp://events:1883" {
		t.Errorf("explicit: got %q", got)
	}
}

func TestNewHealthServiceSelectsBackend(t *testing.T) {
	cfg := config.Default()
	if _, ok := newHealthService(cfg, zap.NewNop()).(*health.MQTTService); !ok {
		t.Error("mqtt source should build an MQTTService")
	}
	cfg.Source = config.SourceNATS
	if _, ok := newHealthService(cfg, zap.NewNop()).(*health.NATSService); !ok {
		t.Error("nats source should build a NATSService")
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestLogOutputWithTUINeverUsesTerminal(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"", tuiLogFile},
		{logger.Stderr, tuiLogFile},
		{logger.Stdout, tuiLogFile},
		{"/var/log/hh.log", "/var/log/hh.log"},
	}
	for _, tt := range tests {
		cfg, _, err := loadConfig([]string{"-tui", "-log-file", tt.file}, io.Discard)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if got := logOutput(cfg); got != tt.want {
			t.Errorf("log file %q: got %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestLogOutputWithoutTUI(t *testing.T) {
	cfg := config.Default()
	if got := logOutput(cfg); got != "" {
		t.Errorf("default: got %q, want empty (stderr)", got)
	}
	cfg.Log.File = "/var/log/hh.log"
	if got := logOutput(cfg); got != "/var/log/hh.log" {
		t.Errorf("file: got %q", got)
	}
}

func TestRealMainExitCodes(t *testing.T) {
	if code := realMain([]string{"-h"}, io.Discard); code != 0 {
		t.Errorf("-h: got exit %d, want 0", code)
	}
	if code := realMain([]string{"-no-such-flag"}, io.Discard); code != 2 {
		t.Errorf("bad flag: got exit %d, want 2", code)
	}
}

func TestRealMainFlushesLogOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	var stderr strings.Builder

	code := realMain([]string{"-no-button", "-print-state", "-log-file", path}, &stderr)
	if code != 1 {
		t.Fatalf("got exit %d, want 1", code)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "print-state needs the button") {
		t.Errorf("fatal error missing from log: %s", b)
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected stderr output: %q", stderr.String())
	}
}
