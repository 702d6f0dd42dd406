// Package config handles loading and validating probekit configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with PROBEKIT_* environment variables
//   - Validation, reporting every problem in one error
//   - Default value handling
//
// The file is named by PROBEKIT_CONFIG and defaults to configs/config.yaml.
// Broker passwords, the InfluxDB token and the JWT secret should be set via
// environment variables rather than committed to the file.
//
// Usage:
//
//	cfg, err := config.LoadDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
