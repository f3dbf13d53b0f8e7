// Package config handles loading and validating DoorSync Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The configuration object replaces the hidden UserDefaults-style globals of
// earlier clients: every component receives its section explicitly at
// construction, so there is no cross-component coupling through shared
// mutable settings.
//
// Security Considerations:
//   - Sensitive values (broker passwords, bearer tokens) should be set via
//     environment variables rather than the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.StreamURL())
package config
