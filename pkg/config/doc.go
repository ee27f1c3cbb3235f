// Package config loads and validates the application configuration.
//
// Configuration comes from an optional YAML file, with defaults applied
// for anything omitted and a small set of HELIOS_* environment
// variables taking precedence over both. The zero-config case (no file,
// no environment) yields a fully working local setup under
// $HOME/.helios.
package config
