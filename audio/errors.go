package audio

import "fmt"

// EmptyInputError reports a signal with no samples.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "empty input: signal has no samples"
}

// InvalidFrameError reports a frame or transform whose geometry does not
// match the configured sizes.
type InvalidFrameError struct {
	FrameSize int
	HopSize   int
	Length    int
	Reason    string
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame (frame_size=%d hop_size=%d length=%d): %s",
		e.FrameSize, e.HopSize, e.Length, e.Reason)
}
