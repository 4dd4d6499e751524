// Gray Logic Instar Bridge
//
// This is the entry point for the Instar IP camera bridge. It listens for
// camera alarm telemetry on MQTT, keeps a registry of the cameras it has
// seen, and turns alarm messages into motion events for the rest of the
// building:
//   - Cameras are registered on first sight and stored in SQLite
//   - Every alarm message updates the camera's motion state
//   - Motion events are republished on graylogic/core/event/..., written
//     to InfluxDB and recorded in a local motion history
//   - A REST API and WebSocket stream expose cameras and live events
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/api"
	"github.com/nerrad567/gray-logic-instar/internal/bridges/instar"
	"github.com/nerrad567/gray-logic-instar/internal/device"
	"github.com/nerrad567/gray-logic-instar/internal/event"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-instar/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when GRAYLOGIC_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// pruneInterval is how often old motion history is deleted.
	pruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Deferred cleanups run in reverse start order on return.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Instar bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	// Event bus and device types
	bus := event.NewBus()
	bus.SetLogger(log.Component("events"))

	types := device.NewTypeRegistry()
	if regErr := instar.Register(types, bus); regErr != nil {
		return fmt.Errorf("registering device types: %w", regErr)
	}

	// Device registry
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), types, bus)
	registry.SetLogger(log.Component("devices"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	// Motion history
	history := device.NewSQLiteMotionHistoryRepository(db.DB)
	bus.Subscribe(device.EventTypeMotionDetected, device.MotionHistorySink(history, log.Component("history")))
	if retention := cfg.HistoryRetention(); retention > 0 {
		go pruneHistoryLoop(ctx, history, retention, pruneInterval, log)
	}

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bus.Subscribe(event.All, influxSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT, logging.ServiceName)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	if cfg.Instar.ForwardEvents {
		// #nosec G115 -- qos validated to 0..2
		forwarder := event.NewMQTTForwarder(mqttClient, byte(cfg.MQTT.QoS), logging.ServiceName, log.Component("forwarder"))
		bus.Subscribe(event.All, forwarder.Handle)
	}

	// Instar subscriber
	var subscriber *instar.Subscriber
	if cfg.Instar.Enabled {
		subscriber, err = instar.NewSubscriber(instar.SubscriberOptions{
			MQTTClient: mqttClient,
			Resolver:   registry,
			RootTopic:  cfg.Instar.RootTopic,
			QoS:        byte(cfg.Instar.QoS), // #nosec G115 -- qos validated to 0..2
			Logger:     log.Component("instar"),
		})
		if err != nil {
			return fmt.Errorf("creating instar subscriber: %w", err)
		}
		if startErr := subscriber.Start(ctx); startErr != nil {
			return fmt.Errorf("starting instar subscriber: %w", startErr)
		}
		defer func() {
			if stopErr := subscriber.Stop(); stopErr != nil {
				log.Error("error stopping instar subscriber", "error", stopErr)
			}
		}()
	} else {
		log.Info("Instar bridge disabled")
	}

	// API server
	if cfg.API.Enabled {
		health := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			health["influxdb"] = influxClient
		}

		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: registry,
			Version:  version,
			Types:    types,
			History:  history,
			Events:   bus,
			Health:   health,
			Metrics: api.MetricsSources{
				DB:   db.DB,
				MQTT: mqttClient,
				Bus:  bus,
			},
		}
		if subscriber != nil {
			deps.Bridge = subscriber
		}

		server, newErr := api.New(deps)
		if newErr != nil {
			return fmt.Errorf("creating API server: %w", newErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns GRAYLOGIC_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// pointWriter is the part of *influxdb.Client the sink uses.
type pointWriter interface {
	WriteMotion(deviceType, deviceID, property string, detected bool, at time.Time)
	WriteDeviceEvent(deviceType, deviceID, eventType string, at time.Time)
}

// influxSink writes motion readings and device creations as points.
func influxSink(w pointWriter) event.Handler {
	return func(e event.Event) {
		switch ev := e.(type) {
		case device.MotionDetectedEvent:
			id := ev.Property.Device
			w.WriteMotion(string(id.Type), id.ID, ev.Property.Key, ev.Value, ev.Timestamp)
		case device.DeviceCreatedEvent:
			w.WriteDeviceEvent(string(ev.Device.Type), ev.Device.ID, ev.EventType(), ev.Timestamp)
		}
	}
}

// historyPruner is the part of the motion history store the prune loop uses.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistoryLoop deletes readings older than retention once at start
// and then every interval until ctx is cancelled.
func pruneHistoryLoop(ctx context.Context, repo historyPruner, retention, interval time.Duration, log *logging.Logger) {
	prune := func() {
		deleted, err := repo.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("pruning motion history failed", "error", err)
			}
			return
		}
		if deleted > 0 {
			log.Info("pruned motion history", "deleted", deleted, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
