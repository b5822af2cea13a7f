package audio

import (
	"encoding/binary"
	"math"
)

// bytesPerSample is the size of one signed 16-bit mono sample.
const bytesPerSample = 2

// SirenParams describes the synthesized tone.
type SirenParams struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int
	// ToneHz is the carrier frequency.
	ToneHz float64
	// WarbleHz is the modulator frequency.
	WarbleHz float64
	// WarbleDepthHz is the peak deviation of the carrier frequency.
	WarbleDepthHz float64
	// Gain is the amplitude in the [0, 1] range.
	Gain float64
}

// Siren renders the tone described by SirenParams as signed 16-bit
// little-endian mono PCM. It never returns io.EOF.
type Siren struct {
	params SirenParams
	// sample is the index of the next sample to render.
	sample uint64
	// phase is the accumulated carrier phase in radians.
	phase float64
}

// NewSiren returns a siren positioned at the start of the tone.
func NewSiren(params SirenParams) *Siren {
	return &Siren{params: params}
}

// Frequency returns the instantaneous carrier frequency at the given sample.
func (s *Siren) Frequency(sample uint64) float64 {
	t := float64(sample) / float64(s.params.SampleRate)

	return s.params.ToneHz + s.params.WarbleDepthHz*math.Sin(2*math.Pi*s.params.WarbleHz*t)
}

// Read fills p with whole samples and returns the number of bytes written.
func (s *Siren) Read(p []byte) (int, error) {
	n := len(p) / bytesPerSample * bytesPerSample
	if s.params.SampleRate <= 0 {
		clear(p[:n])

		return n, nil
	}

	step := 2 * math.Pi / float64(s.params.SampleRate)

	for i := 0; i < n; i += bytesPerSample {
		value := s.params.Gain * math.Sin(s.phase)
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(value*math.MaxInt16)))

		s.phase = math.Mod(s.phase+step*s.Frequency(s.sample), 2*math.Pi)
		s.sample++
	}

	return n, nil
}
