// Package config handles loading and validating duuxlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (DUUXLINK_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - BrokerConfig.String never renders the password
//
// Usage:
//
//	cfg, err := config.Load("configs/duuxlink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Broker)
package config
