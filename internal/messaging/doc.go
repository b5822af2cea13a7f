// Package messaging wraps the Eclipse Paho MQTT client.
//
// Client connects to one broker, subscribes to one topic on every
// (re)connect, forwards inbound payloads to a handler, reports connection
// lifecycle changes as alert.ConnectionStatus, and publishes without blocking
// the caller. Reconnect and retry behaviour is the library's.
package messaging
