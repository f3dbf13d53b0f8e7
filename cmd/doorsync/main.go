// DoorSync Core - garage door state synchronisation service
//
// DoorSync keeps a Raspberry Pi's view of its garage doors in lockstep
// with the door controller backend: it consumes the controller's
// real-time stream, maintains the authoritative local state registry,
// and fans updates out to MQTT, SQLite history, InfluxDB telemetry, and
// a local read-only HTTP API. Triggers go back to the controller over
// its HTTP side-channel.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doorsync/doorsync-core/internal/api"
	"github.com/doorsync/doorsync-core/internal/client"
	"github.com/doorsync/doorsync-core/internal/command"
	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/history"
	"github.com/doorsync/doorsync-core/internal/infrastructure/config"
	"github.com/doorsync/doorsync-core/internal/infrastructure/database"
	"github.com/doorsync/doorsync-core/internal/infrastructure/logging"
	"github.com/doorsync/doorsync-core/internal/relay"
	"github.com/doorsync/doorsync-core/internal/stream"
	"github.com/doorsync/doorsync-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DoorSync Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Door registry: the authoritative local state
	doorIDs := make([]door.ID, len(cfg.Doors.IDs))
	for i, id := range cfg.Doors.IDs {
		doorIDs[i] = door.ID(id)
	}
	store := door.NewStore(doorIDs)
	store.SetLogger(log)
	defer store.Close()
	log.Info("door registry initialised", "doors", len(doorIDs))

	// Stream session to the controller
	creds := command.NewCredentials(cfg.Controller.AuthToken)
	header := http.Header{}
	if !creds.Empty() {
		req, _ := http.NewRequest(http.MethodGet, cfg.StreamURL(), nil)
		creds.Authorize(req)
		header = req.Header
	}
	session := stream.NewSession(stream.SessionConfig{
		URL:              cfg.StreamURL(),
		ReconnectDelay:   cfg.GetReconnectDelay(),
		PingInterval:     cfg.GetPingInterval(),
		HandshakeTimeout: cfg.GetHandshakeTimeout(),
		MaxMessageSize:   int64(cfg.Stream.MaxMessageSize),
		Header:           header,
	})
	session.SetLogger(log)
	session.SetOnStateChange(func(state stream.ConnectionState) {
		log.Info("stream state changed", "state", string(state))
	})

	// Command dispatcher for triggers and the poll fallback
	dispatcher := command.New(command.Config{
		BaseURL:     cfg.BaseURL(),
		DoorIDs:     doorIDs,
		Timeout:     cfg.GetCommandTimeout(),
		Credentials: creds,
	})
	dispatcher.SetLogger(log)

	// Transition history (optional)
	var historyRepo *history.Repository
	if cfg.History.Enabled {
		db, dbErr := database.Open(cfg.History.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", db.Path())

		historyRepo, err = history.NewRepository(ctx, db.DB)
		if err != nil {
			return fmt.Errorf("initialising history: %w", err)
		}

		recorder := history.NewRecorder(historyRepo)
		recorder.SetLogger(log)
		store.Subscribe(recorder.HandleTransition)
	} else {
		log.Info("transition history disabled")
	}

	// MQTT relay (optional)
	var publisher *relay.Publisher
	if cfg.Relay.Enabled {
		publisher, err = relay.Connect(cfg.Relay)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		publisher.SetLogger(log)
		log.Info("MQTT relay connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Relay.Broker.Host, cfg.Relay.Broker.Port),
			"client_id", cfg.Relay.Broker.ClientID,
		)

		// Refresh retained topics on every broker reconnect
		publisher.SetOnConnect(func() {
			log.Info("MQTT relay reconnected, republishing retained state")
			for id, state := range store.Snapshot() {
				if pubErr := publisher.PublishState(id, state); pubErr != nil {
					log.Warn("retained state republish failed", "door_id", int(id), "error", pubErr)
				}
			}
		})

		store.Subscribe(publisher.HandleTransition)
	} else {
		log.Info("MQTT relay disabled")
	}

	// InfluxDB telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)

		store.Subscribe(telemetryClient.HandleTransition)
	} else {
		log.Info("InfluxDB telemetry disabled")
	}

	// The sync client ties session, codec, and registry together
	syncClient, err := client.New(client.Deps{
		Store:      store,
		Session:    session,
		Dispatcher: dispatcher,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating sync client: %w", err)
	}

	// After each full snapshot, push the fresh state to consumers that
	// missed whatever happened while the stream was down.
	syncClient.SetOnSnapshot(func(states map[door.ID]door.State) {
		now := time.Now().UTC()
		for id, state := range states {
			if publisher != nil {
				if pubErr := publisher.PublishState(id, state); pubErr != nil {
					log.Warn("snapshot state publish failed", "door_id", int(id), "error", pubErr)
				}
			}
			if telemetryClient != nil {
				telemetryClient.WriteStateGauge(id, state, now)
			}
		}
	})

	// Local read-only status API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Store:   store,
			Stream:  session,
			History: historyRepo,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating status server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting status server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, starting sync loop",
		"controller", cfg.StreamURL(),
	)

	// Blocks until ctx is cancelled by a shutdown signal
	if err := syncClient.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sync loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// status server, InfluxDB, MQTT, database, registry

	log.Info("DoorSync Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
