// robotlink runs one MQTT command session for a robot.
//
// It connects to the broker over mutual TLS, subscribes to the robot's
// command topic, optionally publishes a message, turns inbound commands into
// queued actions and then disconnects cleanly. A local status API and
// InfluxDB telemetry can be enabled in the configuration file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/robotlink/internal/actions"
	"github.com/nerrad567/robotlink/internal/api"
	"github.com/nerrad567/robotlink/internal/infrastructure/config"
	"github.com/nerrad567/robotlink/internal/infrastructure/database"
	"github.com/nerrad567/robotlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/robotlink/internal/infrastructure/logging"
	"github.com/nerrad567/robotlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/robotlink/internal/session"
	"github.com/nerrad567/robotlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/robotlink.yaml"

	// mqttCloseTimeout bounds the final disconnect when Run has already
	// returned without reaching the stopped signal.
	mqttCloseTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds command-line overrides. A nil field was not set.
type flags struct {
	configPath   string
	count        *int
	publishCount *int
	message      *string
	timeout      *int
}

// parseFlags reads args into flags.
//
// Parameters:
//   - args: Arguments without the program name
//   - stderr: Destination for usage output
//
// Returns:
//   - flags: Parsed overrides
//   - error: pflag.ErrHelp for --help, or a parse error
func parseFlags(args []string, stderr io.Writer) (flags, error) {
	fs := pflag.NewFlagSet("robotlink", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		f            flags
		count        int
		publishCount int
		message      string
		timeout      int
	)
	fs.StringVarP(&f.configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")
	fs.IntVar(&count, "count", 0, "inbound messages to wait for (0 waits out the timeout)")
	fs.IntVar(&publishCount, "publish-count", 0, "messages to publish (0 publishes until interrupted)")
	fs.StringVar(&message, "message", "", "message to publish (empty disables publishing)")
	fs.IntVar(&timeout, "timeout", 0, "seconds to wait at each lifecycle step")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}

	if fs.Changed("count") {
		f.count = &count
	}
	if fs.Changed("publish-count") {
		f.publishCount = &publishCount
	}
	if fs.Changed("message") {
		f.message = &message
	}
	if fs.Changed("timeout") {
		f.timeout = &timeout
	}
	return f, nil
}

// apply writes the set overrides into cfg and revalidates it.
func (f flags) apply(cfg *config.Config) error {
	if f.count != nil {
		cfg.Session.ReceiveCount = *f.count
	}
	if f.publishCount != nil {
		cfg.Session.PublishCount = *f.publishCount
	}
	if f.message != nil {
		cfg.Session.Message = *f.message
	}
	if f.timeout != nil {
		cfg.Session.Timeout = *f.timeout
	}
	return cfg.Validate()
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stderr: Destination for usage output
//
// Returns:
//   - error: nil when the session completed or was interrupted
func run(ctx context.Context, args []string, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := f.apply(cfg); err != nil {
		return fmt.Errorf("applying flags: %w", err)
	}

	log := logging.New(cfg.Logging, version, cfg.Robot.Name)
	log.Info("starting robotlink",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", f.configPath,
	)

	// Action queue
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)

	queue := actions.NewSQLiteQueue(db.DB)

	checks := map[string]api.HealthChecker{"database": db}

	// Telemetry (optional). recorder stays a nil interface when disabled.
	var recorder session.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Robot.Name)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxLog := log.Component("influxdb")
		influxClient.SetOnError(func(err error) {
			influxLog.Error("write failed", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		recorder = influxClient
		checks["influxdb"] = influxClient
	}

	// MQTT transport
	mqttClient, err := mqtt.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		if closeErr := mqttClient.Close(mqttCloseTimeout); closeErr != nil {
			log.Warn("error closing MQTT", "error", closeErr)
		}
	}()
	checks["mqtt"] = mqttClient

	// Live events are broadcast to the hub even when the API is disabled;
	// with no clients a broadcast is a no-op.
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	coordinator, err := session.NewCoordinator(session.Options{
		Config:    session.ConfigFromSettings(cfg),
		Transport: mqttClient,
		Queue:     queue,
		Logger:    log.Component("session"),
		Notifier:  hub,
		Recorder:  recorder,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Session: coordinator,
			Actions: queue,
			Checks:  checks,
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(hubCtx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	runErr := coordinator.Run(ctx)
	snap := coordinator.Snapshot()
	log.Info("session finished",
		"phase", snap.Phase,
		"received", snap.Received,
		"dispatched", snap.Dispatched,
		"skipped", snap.Skipped,
		"publish_attempts", snap.PublishAttempts,
	)

	return sessionResult(log, runErr)
}

// sessionResult maps the coordinator's outcome onto run's result. Only a
// cancellation that still reached the stopped signal counts as success.
func sessionResult(log *logging.Logger, runErr error) error {
	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, session.ErrStopTimeout):
		return fmt.Errorf("session: %w", runErr)
	case errors.Is(runErr, context.Canceled):
		log.Info("session interrupted")
		return nil
	default:
		return fmt.Errorf("session: %w", runErr)
	}
}

// getConfigPath returns ROBOTLINK_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("ROBOTLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
