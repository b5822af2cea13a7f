// Package dashboard wires the alert state store, the local siren and the
// broker glue together.
//
// Service owns the single alert state and applies every trigger (inbound
// broker payloads, operator actions, connection changes) on one event-loop
// goroutine. Run in command.go builds the whole process from configuration.
package dashboard
