// Package control is the client side of the dashboard control API used by cucoon-ctl.
//
// It provides a gRPC client wrapper with call timeouts that tags every call
// with the local user and hostname for the dashboard's audit log.
package control
