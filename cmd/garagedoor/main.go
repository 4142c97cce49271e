// Garagedoor controller.
//
// Reflects garage door sensors onto MQTT as retained open/closed states,
// pulses the opener relay when a trigger command arrives, and keeps the
// WiFi link and bus session up for as long as the process runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/garagedoor/internal/api"
	"github.com/nerrad567/garagedoor/internal/connectivity"
	"github.com/nerrad567/garagedoor/internal/door"
	"github.com/nerrad567/garagedoor/internal/gpio"
	"github.com/nerrad567/garagedoor/internal/infrastructure/config"
	"github.com/nerrad567/garagedoor/internal/infrastructure/database"
	"github.com/nerrad567/garagedoor/internal/infrastructure/influxdb"
	"github.com/nerrad567/garagedoor/internal/infrastructure/logging"
	"github.com/nerrad567/garagedoor/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagedoor/internal/journal"
	"github.com/nerrad567/garagedoor/internal/metrics"
	"github.com/nerrad567/garagedoor/internal/relay"
	"github.com/nerrad567/garagedoor/internal/router"
	"github.com/nerrad567/garagedoor/internal/wifi"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// bus is the part of the MQTT session the controller drives.
type bus interface {
	connectivity.Session
	door.Publisher
	Subscribe(topic string, qos byte) error
	Messages() <-chan mqtt.Message
	SetOnConnect(callback func())
	Close() error
}

// network is the link layer handed to the supervisor. dhcp is nil when
// addressing is managed outside the controller.
type network struct {
	radio connectivity.Radio
	stack connectivity.Stack
	dhcp  *wifi.DHCP
}

// deps are the hardware and network boundaries of run.
type deps struct {
	openGPIO   func(cfg config.GPIOConfig) (gpio.Driver, error)
	newBus     func(cfg *config.Config, log *logging.Logger) bus
	newNetwork func(cfg config.NetworkConfig, log *logging.Logger) network
}

func productionDeps() deps {
	return deps{
		openGPIO:   lookupGPIO,
		newBus:     newSession,
		newNetwork: newNetwork,
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return runWith(ctx, productionDeps())
}

// runWith bootstraps the controller and blocks until ctx is cancelled.
// Errors before the loops start are fatal; the loops themselves never
// fail short of cancellation.
func runWith(ctx context.Context, d deps) error { //nolint:gocognit,gocyclo // linear bootstrap sequence
	log := logging.Default()
	log.Info("starting garagedoor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version, cfg.Device.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"sensors", len(cfg.Sensors),
		"actuators", len(cfg.Actuators),
	)

	// Hardware
	driver, err := d.openGPIO(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("selecting gpio driver: %w", err)
	}
	if err := driver.Open(); err != nil {
		return fmt.Errorf("opening gpio %s: %w", driver, err)
	}
	defer func() {
		log.Info("releasing gpio", "driver", driver.String())
		if closeErr := driver.Close(); closeErr != nil {
			log.Error("error releasing gpio", "error", closeErr)
		}
	}()

	sensors, err := buildSensors(driver, cfg.Sensors)
	if err != nil {
		return err
	}
	actuators, err := buildActuators(driver, cfg.Actuators, log)
	if err != nil {
		return err
	}

	obs := &observers{
		log:     log.With("component", "observers"),
		metrics: metrics.New(),
		tracker: api.NewTracker(cfg.Device.ID, version),
	}

	// Journal
	if cfg.Journal.Enabled {
		db, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing journal")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
		obs.journal = journal.NewStore(db.DB)
		log.Info("journal opened", "path", db.Path())
	}

	// Telemetry is best effort; an unreachable server only costs history.
	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
		if err != nil {
			log.Warn("influxdb unavailable, telemetry disabled", "error", err)
		} else {
			influx.SetOnError(func(err error) {
				log.Warn("influxdb write failed", "error", err)
			})
			obs.influx = influx
			defer func() {
				log.Info("closing influxdb")
				influx.Close() //nolint:errcheck // Close flushes and never fails
			}()
			log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// Bus
	session := d.newBus(cfg, log)
	defer func() {
		log.Info("closing bus session")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing bus session", "error", closeErr)
		}
	}()

	rt := router.New(actuators, session.Messages())
	rt.SetLogger(log.With("component", "router"))
	rt.SetOnMessage(obs.message)
	for _, topic := range rt.Subscriptions() {
		if err := session.Subscribe(topic, byte(cfg.MQTT.QoS)); err != nil {
			return fmt.Errorf("subscribing %s: %w", topic, err)
		}
	}

	for _, a := range actuators {
		a.SetOnPulse(obs.pulse)
		obs.tracker.AddActuator(a.Name())
	}

	monitors := make([]*door.Monitor, 0, len(sensors))
	for _, s := range sensors {
		mon := door.NewMonitor(s, session)
		mon.SetLogger(log.With("component", "door"))
		mon.SetOnChange(obs.door)
		monitors = append(monitors, mon)
	}
	session.SetOnConnect(func() {
		for _, mon := range monitors {
			mon.Republish()
		}
	})

	// Network
	link := d.newNetwork(cfg.Network, log)
	obs.dhcp = link.dhcp

	sup := connectivity.NewSupervisor(link.radio, link.stack, session)
	sup.SetLogger(log.With("component", "connectivity"))
	sup.SetOnStateChange(obs.connectivity)

	// Status API
	if cfg.API.Enabled {
		apiDeps := api.Deps{
			Config:  cfg.API,
			Logger:  log.With("component", "api"),
			Tracker: obs.tracker,
			Metrics: obs.metrics.Handler(),
		}
		if obs.journal != nil {
			apiDeps.Journal = obs.journal
		}
		server, err := api.New(apiDeps)
		if err != nil {
			return fmt.Errorf("creating api server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting api server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing api server", "error", closeErr)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return rt.Run(gctx) })
	for _, mon := range monitors {
		mon := mon
		g.Go(func() error { return mon.Run(gctx) })
	}
	if link.dhcp != nil {
		g.Go(func() error { return link.dhcp.Run(gctx) })
	}
	if obs.journal != nil && cfg.Journal.RetentionDays > 0 {
		keep := time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return obs.journal.RunRetention(gctx, keep, journal.PruneInterval, log.With("component", "journal"))
		})
	}

	log.Info("garagedoor running",
		"device_id", cfg.Device.ID,
		"gpio", driver.String(),
		"network_mode", cfg.Network.Mode,
		"api", cfg.API.Enabled,
	)

	err = g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		log.Info("shutdown signal received, stopping")
		return nil
	}
	return err
}

// getConfigPath returns the config file path from GARAGEDOOR_CONFIG or the
// default location.
func getConfigPath() string {
	if path := os.Getenv("GARAGEDOOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func lookupGPIO(cfg config.GPIOConfig) (gpio.Driver, error) {
	return gpio.Lookup(cfg.Driver, gpio.Options{
		InvertOutputs: cfg.InvertOutputs,
		MCPBus:        cfg.MCPBus,
		MCPAddress:    cfg.MCPAddress,
	})
}

func newSession(cfg *config.Config, log *logging.Logger) bus {
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = cfg.ClientID()
	session := mqtt.NewSession(mqttCfg, cfg.Device.ID)
	session.SetLogger(log.With("component", "mqtt"))
	return session
}

func newNetwork(cfg config.NetworkConfig, log *logging.Logger) network {
	iface := wifi.NewInterface(cfg.Interface)
	n := network{stack: iface}

	switch cfg.Mode {
	case config.NetworkModeStatic:
		n.radio = wifi.NewStatic(iface)
	default:
		sup := wifi.NewSupplicant(wifi.SupplicantConfig{
			Interface:        cfg.Interface,
			SSID:             cfg.SSID,
			Password:         cfg.Password,
			Binary:           cfg.Supplicant.Binary,
			CLIBinary:        cfg.Supplicant.CLIBinary,
			ConfigPath:       cfg.Supplicant.ConfigPath,
			Driver:           cfg.Supplicant.Driver,
			AssociateTimeout: time.Duration(cfg.Supplicant.AssociateTimeout) * time.Second,
		}, iface)
		sup.SetLogger(log.With("component", "wpa_supplicant"))
		n.radio = sup
	}

	if cfg.DHCP.Enabled {
		n.dhcp = wifi.NewDHCP(cfg.DHCP.Binary, cfg.Interface, cfg.DHCP.Args)
		n.dhcp.SetLogger(log.With("component", "dhcp"))
	}
	return n
}

func buildSensors(driver gpio.Driver, pins []config.PinConfig) ([]*door.Sensor, error) {
	sensors := make([]*door.Sensor, 0, len(pins))
	for _, p := range pins {
		line, err := driver.Input(p.Pin)
		if err != nil {
			return nil, fmt.Errorf("claiming sensor %s on pin %d: %w", p.Name, p.Pin, err)
		}
		sensors = append(sensors, door.NewSensor(line, p.Name))
	}
	return sensors, nil
}

func buildActuators(driver gpio.Driver, pins []config.PinConfig, log *logging.Logger) ([]*relay.Actuator, error) {
	actuators := make([]*relay.Actuator, 0, len(pins))
	for _, p := range pins {
		line, err := driver.Output(p.Pin)
		if err != nil {
			return nil, fmt.Errorf("claiming actuator %s on pin %d: %w", p.Name, p.Pin, err)
		}
		a, err := relay.New(line, p.Name)
		if err != nil {
			return nil, fmt.Errorf("creating actuator %s: %w", p.Name, err)
		}
		a.SetLogger(log.With("component", "relay"))
		actuators = append(actuators, a)
	}
	return actuators, nil
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := db.Migrate(ctx, journal.Schema); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return db, nil
}
