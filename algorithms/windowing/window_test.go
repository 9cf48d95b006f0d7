package windowing

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		typ     Type
		want    string
		wantErr bool
	}{
		{"", "hann", false},
		{TypeHann, "hann", false},
		{"HAMMING", "hamming", false},
		{TypeRectangular, "rectangular", false},
		{"kaiser", "", true},
	}
	for _, tt := range tests {
		w, err := New(tt.typ, 8)
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%q) error = %v, wantErr %v", tt.typ, err, tt.wantErr)
		}
		if err == nil && w.GetType() != tt.want {
			t.Errorf("New(%q).GetType() = %q, want %q", tt.typ, w.GetType(), tt.want)
		}
	}

	if _, err := New(TypeHann, 0); err == nil {
		t.Error("New with size 0 succeeded, want error")
	}
}

func TestHannCoefficients(t *testing.T) {
	w := NewHann(4, false)
	want := []float64{0, 0.5, 1, 0.5}
	for i, c := range w.GetCoefficients() {
		if math.Abs(c-want[i]) > 1e-12 {
			t.Errorf("coefficient[%d] = %v, want %v", i, c, want[i])
		}
	}
	if math.Abs(w.Sum()-2) > 1e-12 {
		t.Errorf("Sum() = %v, want 2", w.Sum())
	}

	sym := NewHann(5, true).GetCoefficients()
	if sym[0] != 0 || math.Abs(sym[4]) > 1e-12 || math.Abs(sym[2]-1) > 1e-12 {
		t.Errorf("symmetric Hann = %v, want zero edges and unit centre", sym)
	}
}

func TestHammingEdges(t *testing.T) {
	c := NewHamming(16, false).GetCoefficients()
	if math.Abs(c[0]-0.08) > 1e-12 {
		t.Errorf("Hamming[0] = %v, want 0.08", c[0])
	}
}

func TestApplyInPlace(t *testing.T) {
	w := NewRectangular(3)
	sig := []float64{1, 2, 3}
	if err := w.ApplyInPlace(sig); err != nil {
		t.Fatalf("ApplyInPlace() error = %v", err)
	}
	if sig[2] != 3 {
		t.Errorf("rectangular window changed the signal: %v", sig)
	}

	if err := w.ApplyInPlace([]float64{1}); err == nil {
		t.Error("ApplyInPlace with wrong length succeeded, want error")
	}
	if w.Apply([]float64{1}) != nil {
		t.Error("Apply with wrong length should return nil")
	}
}
