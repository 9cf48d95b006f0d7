package spectral

import (
	"fmt"
	"iter"

	"github.com/RyanBlaney/sonido-vocal/algorithms/windowing"
	"github.com/RyanBlaney/sonido-vocal/audio"
)

// Frame is one fixed-length, hop-spaced slice of the signal.
type Frame struct {
	Index int `json:"index"`
	// Start is the sample offset of the frame in the source buffer.
	Start int `json:"start"`
	// Samples holds the raw samples, zero-padded to the frame size.
	Samples []float64 `json:"-"`
	// Windowed is Samples multiplied by the analysis window.
	Windowed []float64 `json:"-"`
	// Valid counts the real (non-padding) samples at the head of Samples.
	Valid int `json:"valid"`
}

// FrameSegmenter splits a buffer into overlapping windowed frames.
type FrameSegmenter struct {
	frameSize int
	hopSize   int
	window    windowing.Window
}

// NewFrameSegmenter validates the frame geometry. A nil window selects a
// periodic Hann window of frameSize.
func NewFrameSegmenter(frameSize, hopSize int, window windowing.Window) (*FrameSegmenter, error) {
	invalid := func(reason string) error {
		return &audio.InvalidFrameError{FrameSize: frameSize, HopSize: hopSize, Reason: reason}
	}

	switch {
	case frameSize <= 0:
		return nil, invalid("frame size must be positive")
	case hopSize <= 0:
		return nil, invalid("hop size must be positive")
	case hopSize >= frameSize:
		return nil, invalid("hop size must be smaller than frame size")
	}

	if window == nil {
		window = windowing.NewHann(frameSize, false)
	}
	if window.GetSize() != frameSize {
		return nil, invalid(fmt.Sprintf("window size %d does not match frame size", window.GetSize()))
	}

	return &FrameSegmenter{frameSize: frameSize, hopSize: hopSize, window: window}, nil
}

// Count returns the number of frames produced for n samples:
// 1 + ceil(max(0, n-frameSize) / hopSize).
func (fs *FrameSegmenter) Count(n int) int {
	if n <= 0 {
		return 0
	}
	rest := max(0, n-fs.frameSize)
	return 1 + (rest+fs.hopSize-1)/fs.hopSize
}

// Frames returns a sequence over the buffer's frames. The last frame is
// zero-padded so every sample lands in at least one frame. Each yielded
// frame owns fresh slices.
func (fs *FrameSegmenter) Frames(buf *audio.Buffer) (iter.Seq[Frame], error) {
	if buf.Len() == 0 {
		return nil, &audio.EmptyInputError{}
	}

	samples := buf.Samples()
	count := fs.Count(len(samples))

	return func(yield func(Frame) bool) {
		for i := range count {
			start := i * fs.hopSize
			end := min(start+fs.frameSize, len(samples))

			raw := make([]float64, fs.frameSize)
			copy(raw, samples[start:end])

			f := Frame{
				Index:    i,
				Start:    start,
				Samples:  raw,
				Windowed: fs.window.Apply(raw),
				Valid:    end - start,
			}
			if !yield(f) {
				return
			}
		}
	}, nil
}

// Collect materialises every frame of buf.
func (fs *FrameSegmenter) Collect(buf *audio.Buffer) ([]Frame, error) {
	seq, err := fs.Frames(buf)
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, fs.Count(buf.Len()))
	for f := range seq {
		frames = append(frames, f)
	}
	return frames, nil
}

func (fs *FrameSegmenter) FrameSize() int { return fs.frameSize }
func (fs *FrameSegmenter) HopSize() int { return fs.hopSize }
func (fs *FrameSegmenter) Window() windowing.Window { return fs.window }
