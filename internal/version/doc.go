// Package version exposes build metadata for the cucoon binaries.
//
// Version, Commit and BuildTime are injected via -ldflags at release time
// and default to placeholder values for local builds.
package version
