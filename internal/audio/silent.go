package audio

import (
	"io"
	"sync/atomic"
)

// SilentOutput is an Output that is always ready and never makes a sound.
// It is used on headless hosts and keeps count of the voices it played.
type SilentOutput struct {
	ready  chan struct{}
	played atomic.Int64
	active atomic.Int64
}

// NewSilentOutput returns an unlocked silent output.
func NewSilentOutput() *SilentOutput {
	ready := make(chan struct{})
	close(ready)

	return &SilentOutput{ready: ready}
}

// Ready returns an already closed channel.
func (o *SilentOutput) Ready() <-chan struct{} {
	return o.ready
}

// NewVoice returns a voice that ignores src.
//
//nolint:ireturn // Voice is the abstraction the handle owns.
func (o *SilentOutput) NewVoice(io.Reader) (Voice, error) {
	return &silentVoice{output: o}, nil
}

// Close is a no-op.
func (o *SilentOutput) Close() error {
	return nil
}

// Played returns how many voices have been started.
func (o *SilentOutput) Played() int64 {
	return o.played.Load()
}

// Active returns how many started voices are not closed yet.
func (o *SilentOutput) Active() int64 {
	return o.active.Load()
}

type silentVoice struct {
	output  *SilentOutput
	playing atomic.Bool
}

func (v *silentVoice) Play() error {
	if v.playing.CompareAndSwap(false, true) {
		v.output.played.Add(1)
		v.output.active.Add(1)
	}

	return nil
}

func (v *silentVoice) Close() error {
	if v.playing.CompareAndSwap(true, false) {
		v.output.active.Add(-1)
	}

	return nil
}
