package tonal

import (
	"context"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-vocal/algorithms/spectral"
	"github.com/RyanBlaney/sonido-vocal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-vocal/audio"
)

const (
	sampleRate = 44100
	frameSize  = 2048
	hopSize    = 512
)

func spectrogram(t *testing.T, samples []float64) *spectral.Spectrogram {
	t.Helper()
	buf, err := audio.NewBuffer(samples, sampleRate)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	fs, err := spectral.NewFrameSegmenter(frameSize, hopSize, nil)
	if err != nil {
		t.Fatalf("NewFrameSegmenter() error = %v", err)
	}
	frames, err := fs.Collect(buf)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	engine, _ := spectral.NewSpectralEngine(frameSize)
	spec, err := spectral.NewSTFT(engine, 0).Compute(context.Background(), frames, sampleRate, hopSize)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return spec
}

func tone(freq, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func newDetector() *PitchDetector {
	return NewPitchDetector(DefaultPitchDetectionParams(), windowing.NewHann(frameSize, false).Sum())
}

func TestDetectSineTone(t *testing.T) {
	tests := []float64{110, 220, 440, 880}
	for _, freq := range tests {
		res, err := newDetector().Detect(context.Background(), spectrogram(t, tone(freq, 0.8, sampleRate)))
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if math.Abs(res.Pitch-freq) > 0.05*freq {
			t.Errorf("pitch of %v Hz tone = %v, want within 5%%", freq, res.Pitch)
		}
		if res.VoicedFrames == 0 {
			t.Errorf("%v Hz tone: no voiced frames", freq)
		}
	}
}

func TestDetectSilenceIsUnvoiced(t *testing.T) {
	res, err := newDetector().Detect(context.Background(), spectrogram(t, make([]float64, sampleRate)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if res.Pitch != 0 || res.VoicedFrames != 0 {
		t.Errorf("silence: pitch = %v voiced = %d, want 0 and 0", res.Pitch, res.VoicedFrames)
	}
	if res.TotalFrames == 0 {
		t.Error("silence: TotalFrames = 0, want frames to be inspected")
	}
}

func TestDetectBelowNoiseFloor(t *testing.T) {
	res, err := newDetector().Detect(context.Background(), spectrogram(t, tone(440, 1e-4, sampleRate/2)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if res.Pitch != 0 {
		t.Errorf("pitch of -80 dBFS tone = %v, want 0", res.Pitch)
	}
}

func TestDetectOutOfRangeTone(t *testing.T) {
	// Whole frames only, so no truncation step leaks into the search range.
	n := frameSize + 40*hopSize
	res, err := newDetector().Detect(context.Background(), spectrogram(t, tone(5000, 0.5, n)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if res.Pitch != 0 {
		t.Errorf("pitch of 5 kHz tone = %v, want 0", res.Pitch)
	}
}

func TestDetectCancelled(t *testing.T) {
	spec := spectrogram(t, tone(440, 0.5, sampleRate/5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newDetector().Detect(ctx, spec); err == nil {
		t.Error("Detect() with cancelled context succeeded, want error")
	}
}
