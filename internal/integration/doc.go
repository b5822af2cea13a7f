// Package integration holds end-to-end tests that boot a real dashboard.
package integration
