// Package config provides centralized configuration management for the
// shipment analytics services.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Default values (Default)
//	2. A YAML file (config.yaml or configs/config.yaml)
//	3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// Every variable is namespaced with the SOPO_ prefix and follows the
// section structure of Config:
//
//	SOPO_SERVER_PORT=8080
//	SOPO_DATA_CSV_PATH=data/logistics_by_center.csv
//	SOPO_DATA_ENCODING=euc-kr
//	SOPO_ANALYTICS_ZSCORE_THRESHOLD=2.5
//	SOPO_ANALYTICS_PERIOD_DAYS=14
//	SOPO_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	paths, err := cfg.ResolvedPaths()
package config
