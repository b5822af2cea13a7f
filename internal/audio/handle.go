package audio

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrHandleSpent is returned when starting a handle that was already stopped.
	ErrHandleSpent = errors.New("alarm handle already stopped")
	// ErrAlreadyStarted is returned when starting a handle twice.
	ErrAlreadyStarted = errors.New("alarm handle already started")
	// errNoOutput is returned when a handle is built without an output.
	errNoOutput = errors.New("audio output is not set")
)

// handlePhase tracks the one-way lifecycle of a handle.
type handlePhase int

const (
	phaseFresh handlePhase = iota
	phaseStarted
	phaseSpent
)

// Handle is one instance of the synthesized siren bound to one voice.
// Lifecycle is fresh → started → spent; a spent handle never plays again.
type Handle struct {
	mu     sync.Mutex
	output Output
	siren  *Siren
	voice  Voice
	phase  handlePhase
}

// NewHandle prepares a fresh siren on the given output.
func NewHandle(output Output, params SirenParams) (*Handle, error) {
	if output == nil {
		return nil, errNoOutput
	}

	return &Handle{
		output: output,
		siren:  NewSiren(params),
	}, nil
}

// Ready is closed once the underlying output accepts playback.
func (h *Handle) Ready() <-chan struct{} {
	return h.output.Ready()
}

// Start begins playback. It succeeds at most once per handle.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.phase {
	case phaseStarted:
		return ErrAlreadyStarted
	case phaseSpent:
		return ErrHandleSpent
	case phaseFresh:
	}

	voice, err := h.output.NewVoice(h.siren)
	if err != nil {
		return fmt.Errorf("create voice: %w", err)
	}

	if err = voice.Play(); err != nil {
		// A voice that failed to play is released, the handle stays fresh for a retry.
		_ = voice.Close()

		return err
	}

	h.voice = voice
	h.phase = phaseStarted

	return nil
}

// Stop ends playback and releases the voice. The handle is spent afterwards
// whatever the outcome.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.phase = phaseSpent

	if h.voice == nil {
		return nil
	}

	voice := h.voice
	h.voice = nil

	if err := voice.Close(); err != nil {
		return fmt.Errorf("release voice: %w", err)
	}

	return nil
}

// Playing reports whether the handle is audible.
func (h *Handle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.phase == phaseStarted
}

// Spent reports whether the handle was stopped and must be replaced.
func (h *Handle) Spent() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.phase == phaseSpent
}
