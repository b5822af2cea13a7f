// Package audio synthesizes the warbling alarm siren and plays it.
//
// A Siren is an endless PCM stream: a sine carrier whose pitch is swept by a
// low-frequency modulator. A Handle bundles one Siren with one playback voice
// of an Output. Handles are one-shot: once stopped they cannot start again,
// the owner discards them and builds a new one.
package audio
