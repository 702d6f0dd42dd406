// probekit - WebSocket and MQTT connection tester
//
// This is the main entry point for the probekit service. It hosts one
// WebSocket test client and one MQTT test client behind an HTTP control API,
// relays their events to UI clients over /api/v1/events and optionally
// archives traffic to SQLite and samples stats into InfluxDB.
//
// Usage:
//
//	probekit                       run the service
//	probekit token -sub NAME -role viewer|operator
//	                               print a signed API access token
//	probekit migrate [status|up|down]
//	                               show, apply or roll back archive migrations
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/probekit/internal/api"
	"github.com/nerrad567/probekit/internal/archive"
	"github.com/nerrad567/probekit/internal/auth"
	"github.com/nerrad567/probekit/internal/clock"
	"github.com/nerrad567/probekit/internal/infrastructure/config"
	"github.com/nerrad567/probekit/internal/infrastructure/database"
	"github.com/nerrad567/probekit/internal/infrastructure/influxdb"
	"github.com/nerrad567/probekit/internal/infrastructure/logging"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/telemetry"
	"github.com/nerrad567/probekit/internal/wstester"
	"github.com/nerrad567/probekit/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

var _ telemetry.Sink = (*influxdb.Client)(nil)

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "token":
			err = runToken(os.Args[2:], os.Stdout)
		case "migrate":
			err = runMigrate(ctx, os.Args[2:], os.Stdout)
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			cancel()
			os.Exit(2)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled, then tears everything down in reverse
// order of construction.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting probekit",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	ws := wstester.New(webSocketConfig(cfg.WebSocketTester), wstester.WithLogger(log.With("engine", "websocket")))
	defer ws.Destroy()

	mq := mqtttester.New(mqttConfig(cfg.MQTTTester), mqtttester.WithLogger(log.With("engine", "mqtt")))
	defer mq.Destroy()

	// Message archive (optional)
	deps := api.Deps{
		Config:    cfg.API,
		Relay:     cfg.Relay,
		Security:  cfg.Security,
		Logger:    log,
		WebSocket: ws,
		MQTT:      mq,
		Version:   version,
	}
	if cfg.Archive.Enabled {
		db, recorder, archiveErr := openArchive(ctx, cfg.Archive, log)
		if archiveErr != nil {
			return archiveErr
		}
		defer func() {
			log.Info("closing message archive")
			recorder.Close()
			if dropped := recorder.Dropped(); dropped > 0 {
				log.Warn("archive dropped messages", "count", dropped)
			}
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		defer recorder.AttachWebSocket(ws)()
		defer recorder.AttachMQTT(mq)()
		deps.Archive = archive.NewSQLiteRepository(db.DB)
		deps.Recorder = recorder
	} else {
		log.Info("message archive disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		sampler := telemetry.NewSampler(influxClient, time.Duration(cfg.Telemetry.Interval)*time.Second, nil, log)
		sampler.Add(telemetry.WebSocketSource(ws))
		sampler.Add(telemetry.MQTTSource(mq))
		sampler.Start()
		defer sampler.Stop()
		deps.Telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "address", cfg.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openArchive opens and migrates the archive database and starts a recorder
// on it.
func openArchive(ctx context.Context, cfg config.ArchiveConfig, log *logging.Logger) (*database.DB, *archive.Recorder, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("message archive ready", "path", db.Path(), "retention_hours", cfg.Retention)

	recorder := archive.NewRecorder(archive.NewSQLiteRepository(db.DB), cfg.BufferSize, log.With("component", "archive"))
	recorder.StartRetention(
		time.Duration(cfg.Retention)*time.Hour,
		time.Duration(cfg.PruneInterval)*time.Minute,
		clock.Real(),
	)
	return db, recorder, nil
}

// healthCheck verifies started components before declaring readiness.
// influxClient may be nil when telemetry is disabled.
func healthCheck(ctx context.Context, server *api.Server, influxClient *influxdb.Client) error {
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// webSocketConfig converts file settings into engine settings.
func webSocketConfig(c config.WebSocketTesterConfig) wstester.Config {
	return wstester.Config{
		URL:               c.URL,
		Protocols:         c.Protocols,
		Timeout:           config.Millis(c.Timeout),
		ReconnectAttempts: c.ReconnectAttempts,
		ReconnectInterval: config.Millis(c.ReconnectInterval),
		PingInterval:      config.Millis(c.PingInterval),
		MaxMessageSize:    c.MaxMessageSize,
		MaxMessages:       c.MaxMessages,
	}
}

// mqttConfig converts file settings into engine settings. An empty client ID
// gets a random one.
func mqttConfig(c config.MQTTTesterConfig) mqtttester.Config {
	clientID := c.ClientID
	if clientID == "" {
		clientID = mqtttester.NewClientID()
	}
	return mqtttester.Config{
		BrokerURL:             c.BrokerURL,
		Port:                  c.Port,
		Protocol:              c.Protocol,
		ClientID:              clientID,
		Username:              c.Username,
		Password:              c.Password,
		KeepAlive:             time.Duration(c.KeepAlive) * time.Second,
		CleanSession:          c.CleanSession,
		ReconnectPeriod:       config.Millis(c.ReconnectPeriod),
		ConnectTimeout:        config.Millis(c.ConnectTimeout),
		MaxReconnectTimes:     c.MaxReconnectTimes,
		MaxMessages:           c.MaxMessages,
		MaxPayloadSize:        c.MaxPayloadSize,
		TLSInsecureSkipVerify: c.TLSInsecureSkipVerify,
	}
}

// runToken prints a signed access token for the configured secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("sub", "", "token subject (required)")
	role := fs.String("role", string(auth.RoleViewer), "viewer or operator")
	ttl := fs.Int("ttl", 0, "lifetime in minutes (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("token: -sub is required")
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("token: %w", auth.ErrNoSecret)
	}
	if *ttl == 0 {
		*ttl = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
