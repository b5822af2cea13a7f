package audio

import (
	"errors"
	"fmt"
	"io"
)

// Backend names accepted by Open.
const (
	// BackendOto plays through the system sound card.
	BackendOto = "oto"
	// BackendNone accepts every call and produces no sound.
	BackendNone = "none"
)

// ErrUnknownBackend is returned by Open for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown audio backend")

// Output is a device that can play PCM streams.
type Output interface {
	// Ready is closed once the device is unlocked and voices may start.
	Ready() <-chan struct{}
	// NewVoice prepares a playback stream that reads from src.
	NewVoice(src io.Reader) (Voice, error)
	// Close releases the device.
	Close() error
}

// Voice is one playback stream of an Output.
type Voice interface {
	// Play starts playback.
	Play() error
	// Close stops playback and releases the stream.
	Close() error
}

// Open creates the output selected by backend.
//
//nolint:ireturn // Callers pick the backend at runtime.
func Open(backend string, sampleRate int) (Output, error) {
	switch backend {
	case BackendOto:
		return NewOtoOutput(sampleRate)
	case BackendNone, "":
		return NewSilentOutput(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
