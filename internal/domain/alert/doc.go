// Package alert contains the core domain types of the monitoring dashboard.
//
// It defines State (SAFE or ALERT), ConnectionStatus of the messaging link,
// the wire payloads exchanged over the broker, and Snapshot, the read-only
// view handed to presentation code with a Clone helper to avoid leaking
// internal references.
package alert
