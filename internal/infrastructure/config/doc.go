// Package config handles loading and validating the calibright daemon
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The per-display calibration file named by displays.config_file is a
// separate, hot-reloadable document handled by the configstore package.
// This file is read once at startup.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Displays.ConfigFile)
package config
