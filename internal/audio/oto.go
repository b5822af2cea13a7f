package audio

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"
)

// OtoOutput plays through the system sound card.
// Only one OtoOutput may exist per process.
type OtoOutput struct {
	context *oto.Context
	ready   chan struct{}
}

// NewOtoOutput opens the sound card for mono 16-bit playback.
func NewOtoOutput(sampleRate int) (*OtoOutput, error) {
	//nolint:exhaustruct // Buffer size defaults are fine for a siren.
	options := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	otoContext, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("open sound card: %w", err)
	}

	return &OtoOutput{
		context: otoContext,
		ready:   ready,
	}, nil
}

// Ready is closed once the sound card is initialized.
func (o *OtoOutput) Ready() <-chan struct{} {
	return o.ready
}

// NewVoice creates a player reading from src.
//
//nolint:ireturn // Voice is the abstraction the handle owns.
func (o *OtoOutput) NewVoice(src io.Reader) (Voice, error) {
	return &otoVoice{player: o.context.NewPlayer(src)}, nil
}

// Close suspends the sound card. The oto context itself lives until the process exits.
func (o *OtoOutput) Close() error {
	if err := o.context.Suspend(); err != nil {
		return fmt.Errorf("suspend sound card: %w", err)
	}

	return nil
}

// otoVoice adapts an oto player to Voice.
type otoVoice struct {
	player *oto.Player
}

// Play starts the player and reports any error it already ran into.
func (v *otoVoice) Play() error {
	v.player.Play()

	if err := v.player.Err(); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	return nil
}

// Close stops and releases the player.
func (v *otoVoice) Close() error {
	v.player.Pause()

	if err := v.player.Close(); err != nil {
		return fmt.Errorf("close player: %w", err)
	}

	return nil
}
