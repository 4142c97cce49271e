// Package config handles loading and validating the controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and line assignments
//   - Default value handling
//
// Security Considerations:
//   - WiFi and broker credentials should be set via environment variables
//     (GARAGEDOOR_WIFI_PASSWORD, GARAGEDOOR_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/garagedoor/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
