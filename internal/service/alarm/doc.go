// Package alarm implements the local siren controller.
//
// The Controller owns exactly one audio.Handle at a time. It starts the
// handle when the dashboard enters ALERT, and on return to SAFE stops it,
// discards it and builds a replacement in the background, because a stopped
// handle cannot be restarted.
package alarm
