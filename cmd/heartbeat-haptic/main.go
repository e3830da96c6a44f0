// Command heartbeat-haptic shows the live heart rate and turns every heartbeat
// into a haptic pulse while the user holds the button.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sweeney/heartbeat-haptic/internal/app"
	"github.com/sweeney/heartbeat-haptic/internal/config"
	"github.com/sweeney/heartbeat-haptic/internal/gpio"
	"github.com/sweeney/heartbeat-haptic/internal/haptic"
	"github.com/sweeney/heartbeat-haptic/internal/health"
	"github.com/sweeney/heartbeat-haptic/internal/logger"
	"github.com/sweeney/heartbeat-haptic/internal/mqtt"
	"github.com/sweeney/heartbeat-haptic/internal/status"
	"github.com/sweeney/heartbeat-haptic/internal/tui"
	"github.com/sweeney/heartbeat-haptic/internal/web"
)

const serviceName = "heartbeat-haptic"

// tuiLogFile receives the log while the terminal screen owns the terminal.
const tuiLogFile = serviceName + ".log"

func main() {
	os.Exit(realMain(os.Args[1:], os.Stderr))
}

// realMain runs the daemon and returns the process exit code. Deferred
// calls, including the final log sync, run before main exits.
func realMain(args []string, stderr io.Writer) int {
	cfg, printState, err := loadConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName, logOutput(cfg))
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if err := run(cfg, printState, log); err != nil {
		log.Error("fatal", zap.Error(err))
		if cfg.TUI {
			fmt.Fprintf(stderr, "%s: %v\n", serviceName, err)
		}
		return 1
	}
	return 0
}

// logOutput picks the log sink. The terminal screen redraws only changed
// lines, so with -tui the log goes to a file instead of the terminal.
func logOutput(cfg config.Config) string {
	switch {
	case !cfg.TUI:
		return cfg.Log.File
	case cfg.Log.File == "", cfg.Log.File == logger.Stderr, cfg.Log.File == logger.Stdout:
		return tuiLogFile
	default:
		return cfg.Log.File
	}
}

// loadConfig builds the configuration from defaults, the YAML file named by
// -config, HEARTBEAT_HAPTIC_* variables and finally any flags set on the
// command line.
func loadConfig(args []string, output io.Writer) (config.Config, bool, error) {
	def := config.Default()
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(output)

	path := fs.String("config", "", "YAML config file")
	source := fs.String("source", def.Source, "Heart-rate source: mqtt or nats")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker carrying heart-rate samples")
	topic := fs.String("topic", def.MQTT.Topic, "MQTT topic carrying heart-rate samples")
	natsURL := fs.String("nats-url", def.NATS.URL, "NATS server carrying heart-rate samples")
	subject := fs.String("subject", def.NATS.Subject, "NATS subject carrying heart-rate samples")
	eventsBroker := fs.String("events-broker", def.Events.Broker, "MQTT broker for lifecycle events (empty uses --broker)")
	heartbeat := fs.Duration("heartbeat", def.Events.Heartbeat, "Heartbeat interval (0 to disable)")
	tick := fs.Duration("tick", def.Haptic.Tick, "Pulse scheduler tick period")
	poll := fs.Duration("poll", def.Button.Poll, "Button polling interval")
	debounce := fs.Duration("debounce", def.Button.Debounce, "Button debounce duration")
	pinButton := fs.Int("pin-button", def.Button.Pin, "BCM pin number of the press button")
	pinHaptic := fs.Int("pin-haptic", def.Haptic.Pin, "BCM pin number of the vibration motor")
	width := fs.Duration("pulse-width", def.Haptic.Width, "Haptic pulse width")
	noHaptic := fs.Bool("no-haptic", def.Haptic.Disabled, "Run without the vibration motor")
	noButton := fs.Bool("no-button", def.Button.Disabled, "Run without the press button")
	httpAddr := fs.String("http", def.HTTPAddr, "HTTP status address (empty to disable)")
	logLevel := fs.String("log-level", def.Log.Level, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", def.Log.Format, "Log format: json or console")
	logFile := fs.String("log-file", def.Log.File, "Log file (empty for stderr, "+tuiLogFile+" with -tui)")
	useTUI := fs.Bool("tui", def.TUI, "Show the terminal screen")
	printState := fs.Bool("print-state", false, "Print the button state and exit")

	if err := fs.Parse(args); err != nil {
		return def, false, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, false, err
	}
	if err := cfg.LoadFromEnv(config.EnvPrefix); err != nil {
		return cfg, false, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *source
		case "broker":
			cfg.MQTT.Broker = *broker
		case "topic":
			cfg.MQTT.Topic = *topic
		case "nats-url":
			cfg.NATS.URL = *natsURL
		case "subject":
			cfg.NATS.Subject = *subject
		case "events-broker":
			cfg.Events.Broker = *eventsBroker
		case "heartbeat":
			cfg.Events.Heartbeat = *heartbeat
		case "tick":
			cfg.Haptic.Tick = *tick
		case "poll":
			cfg.Button.Poll = *poll
		case "debounce":
			cfg.Button.Debounce = *debounce
		case "pin-button":
			cfg.Button.Pin = *pinButton
		case "pin-haptic":
			cfg.Haptic.Pin = *pinHaptic
		case "pulse-width":
			cfg.Haptic.Width = *width
		case "no-haptic":
			cfg.Haptic.Disabled = *noHaptic
		case "no-button":
			cfg.Button.Disabled = *noButton
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "log-file":
			cfg.Log.File = *logFile
		case "tui":
			cfg.TUI = *useTUI
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *printState, nil
}

// resolveEventsBroker returns the broker for lifecycle events. It falls back
// to the sample broker when none is configured; empty disables events.
func resolveEventsBroker(cfg config.Config) string {
	if cfg.Events.Broker != "" {
		return cfg.Events.Broker
	}
	return cfg.MQTT.Broker
}

func newHealthService(cfg config.Config, log *zap.Logger) health.Service {
	if cfg.Source == config.SourceNATS {
		return health.NewNATSService(health.NATSOptions{
			URL:      cfg.NATS.URL,
			Subject:  cfg.NATS.Subject,
			Username: cfg.NATS.Username,
			Password: cfg.NATS.Password,
			Token:    cfg.NATS.Token,
		}, log)
	}
	return health.NewMQTTService(health.MQTTOptions{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      1,
	}, log)
}

func run(cfg config.Config, printState bool, log *zap.Logger) error {
	var button gpio.Reader
	if !cfg.Button.Disabled {
		r, err := gpio.NewRealReader(cfg.Button.Pin)
		if err != nil {
			return fmt.Errorf("init button: %w", err)
		}
		defer r.Close()
		button = r
	}

	if printState {
		if button == nil {
			return errors.New("print-state needs the button")
		}
		pressed, err := button.Read()
		if err != nil {
			return fmt.Errorf("read button: %w", err)
		}
		fmt.Printf("button: %s\n", pressedString(pressed))
		return nil
	}

	var act haptic.Actuator = haptic.Nop{}
	if !cfg.Haptic.Disabled {
		a, err := haptic.NewGPIOActuator(cfg.Haptic.Pin, cfg.Haptic.Width, log)
		if err != nil {
			return fmt.Errorf("init haptic: %w", err)
		}
		act = a
	}
	defer act.Close()

	svc := newHealthService(cfg, log)
	defer svc.Close()

	var publisher mqtt.Publisher
	broker := resolveEventsBroker(cfg)
	if broker != "" {
		p := mqtt.NewRealPublisher(broker, cfg.Events.ClientID, log)
		defer p.Close()
		publisher = p
	} else {
		log.Info("no events broker configured, lifecycle events disabled")
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Source:      cfg.Source,
		SourceAddr:  cfg.SourceAddr(),
		TickMs:      cfg.Haptic.Tick.Milliseconds(),
		PollMs:      cfg.Button.Poll.Milliseconds(),
		DebounceMs:  cfg.Button.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Events.Heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPAddr:    cfg.HTTPAddr,
	})

	ctrl := app.New(log, svc, act, button, publisher, tracker, app.Options{
		TickPeriod:   cfg.Haptic.Tick,
		PollInterval: cfg.Button.Poll,
		Debounce:     cfg.Button.Debounce,
		Heartbeat:    cfg.Events.Heartbeat,
		CallTimeout:  cfg.CallTimeout,
		NetworkInfo:  readNetworkInfo,
	})

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, ctrl)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case s := <-sigCh:
			log.Info("received signal, shutting down", zap.String("signal", s.String()))
			cancel(app.ShutdownCause{Reason: signalName(s)})
		case <-ctx.Done():
		}
	}()

	if !cfg.TUI {
		return ctrl.Run(ctx)
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	prog := tea.NewProgram(tui.New(tracker, ctrl, 0), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Warn("terminal screen error", zap.Error(err))
	}
	cancel(app.ShutdownCause{Reason: "QUIT"})
	return <-done
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
