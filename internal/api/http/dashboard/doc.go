// Package dashboard implements the HTTP surface of the dashboard: the embedded
// page, its JSON actions, the WebSocket snapshot stream and the metrics endpoint.
package dashboard
