// Package config handles configuration loading for echo-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ECHO_CONFIG environment variable
//  2. ~/.config/echo/gateway.yaml (XDG_CONFIG_HOME respected)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ECHO_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "30m"
//	server:
//	  read_timeout: "10s"
//	  write_timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Required Fields
//
// database.path and auth.jwt_secret must be set; everything else has a
// default.
package config
