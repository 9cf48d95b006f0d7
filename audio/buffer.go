// Package audio holds the decoded signal handed to the analysis pipeline and
// the input errors shared by every stage.
package audio

import (
	"fmt"
	"time"
)

// Buffer is an immutable mono PCM signal with its sample rate.
type Buffer struct {
	samples    []float64
	sampleRate int
}

// NewBuffer copies samples into a new Buffer. An empty slice yields
// *EmptyInputError; a non-positive rate is rejected.
func NewBuffer(samples []float64, sampleRate int) (*Buffer, error) {
	if len(samples) == 0 {
		return nil, &EmptyInputError{}
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)

	return &Buffer{samples: owned, sampleRate: sampleRate}, nil
}

// Samples returns the underlying samples. Callers must not modify them.
func (b *Buffer) Samples() []float64 {
	if b == nil {
		return nil
	}
	return b.samples
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int {
	if b == nil {
		return 0
	}
	return b.sampleRate
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.samples)
}

// Duration returns the signal length as a time.Duration.
func (b *Buffer) Duration() time.Duration {
	if b.Len() == 0 {
		return 0
	}
	return time.Duration(float64(len(b.samples)) / float64(b.sampleRate) * float64(time.Second))
}
