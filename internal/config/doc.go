// Package config defines the settings shared by the dashboard binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Config groups the broker connection, the HTTP and gRPC listeners and the
// siren synthesis parameters. Validate fills in defaults for omitted fields.
package config
