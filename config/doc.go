// Package config loads service configuration from YAML files, .env files and
// environment variables using Viper and godotenv, and watches a configuration
// file for live edits.
//
// # Usage
//
//	var cfg reduction.Config
//	err := config.LoadConfig("xpdflow", &cfg, config.WithConfigFile("xpdflow.yml"))
//
// Environment variables prefixed with the service name override file values,
// with underscores mapping onto nested keys (XPDFLOW_MASK_ALPHA -> mask.alpha).
package config
