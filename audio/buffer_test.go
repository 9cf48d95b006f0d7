package audio

import (
	"errors"
	"testing"
	"time"
)

func TestNewBufferCopiesInput(t *testing.T) {
	in := []float64{0.1, 0.2, 0.3}
	buf, err := NewBuffer(in, 4)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	in[0] = 9

	if got := buf.Samples()[0]; got != 0.1 {
		t.Errorf("Samples()[0] = %v, want 0.1 (buffer must own its data)", got)
	}
	if buf.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buf.Len())
	}
	if buf.Duration() != 750*time.Millisecond {
		t.Errorf("Duration() = %v, want 750ms", buf.Duration())
	}
}

func TestNewBufferRejectsBadInput(t *testing.T) {
	_, err := NewBuffer(nil, 44100)
	var empty *EmptyInputError
	if !errors.As(err, &empty) {
		t.Errorf("NewBuffer(nil) error = %v, want *EmptyInputError", err)
	}

	if _, err := NewBuffer([]float64{1}, 0); err == nil {
		t.Error("NewBuffer with zero sample rate succeeded, want error")
	}
}

func TestNilBufferAccessors(t *testing.T) {
	var b *Buffer
	if b.Len() != 0 || b.SampleRate() != 0 || b.Samples() != nil || b.Duration() != 0 {
		t.Error("nil Buffer accessors should return zero values")
	}
}
