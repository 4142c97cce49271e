package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Network modes.
const (
	// NetworkModeWPA associates through wpa_supplicant.
	NetworkModeWPA = "wpa"
	// NetworkModeStatic treats the interface as already provisioned.
	NetworkModeStatic = "static"
)

// Config is the root configuration structure for the controller.
type Config struct {
	Device    DeviceConfig   `yaml:"device"`
	Network   NetworkConfig  `yaml:"network"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	GPIO      GPIOConfig     `yaml:"gpio"`
	Sensors   []PinConfig    `yaml:"sensors"`
	Actuators []PinConfig    `yaml:"actuators"`
	Logging   LoggingConfig  `yaml:"logging"`
	API       APIConfig      `yaml:"api"`
	InfluxDB  InfluxDBConfig `yaml:"influxdb"`
	Journal   JournalConfig  `yaml:"journal"`
}

// DeviceConfig identifies this controller on the bus.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// NetworkConfig contains link settings.
type NetworkConfig struct {
	Interface  string           `yaml:"interface"`
	Mode       string           `yaml:"mode"`
	SSID       string           `yaml:"ssid"`
	Password   string           `yaml:"password"`
	Supplicant SupplicantConfig `yaml:"supplicant"`
	DHCP       DHCPConfig       `yaml:"dhcp"`
}

// SupplicantConfig controls the managed wpa_supplicant daemon.
type SupplicantConfig struct {
	// Binary is the path to wpa_supplicant.
	Binary string `yaml:"binary"`

	// CLIBinary is the path to wpa_cli.
	CLIBinary string `yaml:"cli_binary"`

	// ConfigPath is where the generated supplicant config is written.
	ConfigPath string `yaml:"config_path"`

	// Driver is passed as -D. Default: "nl80211"
	Driver string `yaml:"driver"`

	// AssociateTimeout bounds one association attempt (seconds).
	AssociateTimeout int `yaml:"associate_timeout"`
}

// DHCPConfig controls the DHCP client daemon.
type DHCPConfig struct {
	// Enabled runs the DHCP client under supervision.
	// Disable when addresses are assigned outside the controller.
	Enabled bool `yaml:"enabled"`

	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	KeepAlive int              `yaml:"keepalive"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GPIOConfig selects the line driver.
type GPIOConfig struct {
	Driver        string `yaml:"driver"`
	MCPBus        uint8  `yaml:"mcp_bus"`
	MCPAddress    uint8  `yaml:"mcp_address"`
	InvertOutputs bool   `yaml:"invert_outputs"`
}

// PinConfig binds a logical name to a driver pin.
type PinConfig struct {
	Name string `yaml:"name"`
	Pin  uint16 `yaml:"pin"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains the status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// JournalConfig contains the local event journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// RetentionDays prunes entries older than this. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GARAGEDOOR_SECTION_KEY
// For example: GARAGEDOOR_WIFI_SSID, GARAGEDOOR_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "garage",
			Type: "garage-door",
		},
		Network: NetworkConfig{
			Interface: "wlan0",
			Mode:      NetworkModeWPA,
			Supplicant: SupplicantConfig{
				Binary:           "/usr/sbin/wpa_supplicant",
				CLIBinary:        "/usr/sbin/wpa_cli",
				ConfigPath:       "/run/garagedoor/wpa_supplicant.conf",
				Driver:           "nl80211",
				AssociateTimeout: 15,
			},
			DHCP: DHCPConfig{
				Enabled: true,
				Binary:  "/sbin/udhcpc",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:       1,
			KeepAlive: 30,
		},
		GPIO: GPIOConfig{
			Driver:     "rpio",
			MCPBus:     1,
			MCPAddress: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Journal: JournalConfig{
			Path:          "/var/lib/garagedoor/journal.db",
			RetentionDays: 30,
			WALMode:       true,
			BusyTimeout:   5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Credentials are expected to arrive this way rather than in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GARAGEDOOR_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Network
	if v := os.Getenv("GARAGEDOOR_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	if v := os.Getenv("GARAGEDOOR_WIFI_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("GARAGEDOOR_WIFI_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}

	// MQTT
	if v := os.Getenv("GARAGEDOOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GARAGEDOOR_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GARAGEDOOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GARAGEDOOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// GPIO
	if v := os.Getenv("GARAGEDOOR_GPIO_DRIVER"); v != "" {
		cfg.GPIO.Driver = v
	}

	// Logging
	if v := os.Getenv("GARAGEDOOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// InfluxDB
	if v := os.Getenv("GARAGEDOOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(c.Device.ID, "/+#") {
		errs = append(errs, "device.id must not contain MQTT topic characters")
	}

	// Network
	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	switch c.Network.Mode {
	case NetworkModeWPA:
		if c.Network.SSID == "" {
			errs = append(errs, "network.ssid is required in wpa mode (set GARAGEDOOR_WIFI_SSID)")
		}
		if n := len(c.Network.Password); n != 0 && (n < 8 || n > 63) {
			errs = append(errs, "network.password must be 8 to 63 characters")
		}
		if c.Network.Supplicant.AssociateTimeout < 1 {
			errs = append(errs, "network.supplicant.associate_timeout must be positive")
		}
	case NetworkModeStatic:
	default:
		errs = append(errs, fmt.Sprintf("network.mode %q must be %q or %q",
			c.Network.Mode, NetworkModeWPA, NetworkModeStatic))
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Lines
	if len(c.Sensors) == 0 && len(c.Actuators) == 0 {
		errs = append(errs, "at least one sensor or actuator is required")
	}
	errs = append(errs, validatePins(c.Sensors, c.Actuators)...)

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	// Journal
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validatePins checks names are unique per kind and pins are unique across
// all lines. A sensor and an actuator may share a name.
func validatePins(sensors, actuators []PinConfig) []string {
	var errs []string
	names := map[string]map[string]string{
		"sensors":   {},
		"actuators": {},
	}
	pins := make(map[uint16]string)

	check := func(kind string, i int, p PinConfig) {
		field := fmt.Sprintf("%s[%d]", kind, i)
		switch {
		case p.Name == "":
			errs = append(errs, field+".name is required")
		case strings.ContainsAny(p.Name, "/+#"):
			errs = append(errs, field+".name must not contain MQTT topic characters")
		default:
			if prev, dup := names[kind][p.Name]; dup {
				errs = append(errs, fmt.Sprintf("%s.name %q duplicates %s", field, p.Name, prev))
			}
			names[kind][p.Name] = field
		}
		if prev, dup := pins[p.Pin]; dup {
			errs = append(errs, fmt.Sprintf("%s.pin %d duplicates %s", field, p.Pin, prev))
		}
		pins[p.Pin] = field
	}

	for i, s := range sensors {
		check("sensors", i, s)
	}
	for i, a := range actuators {
		check("actuators", i, a)
	}
	return errs
}

// ReadTimeout returns the read timeout as a Duration.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// ClientID returns the MQTT client id, derived from the device id when unset.
func (c *Config) ClientID() string {
	if c.MQTT.Broker.ClientID != "" {
		return c.MQTT.Broker.ClientID
	}
	return "garagedoor-" + c.Device.ID
}
