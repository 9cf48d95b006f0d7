package transcode

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-vocal/audio"
)

// errNeedsFFmpeg marks WAV files the in-process reader does not handle
// (float or extensible encodings, resampling requests).
var errNeedsFFmpeg = errors.New("wav: needs ffmpeg")

const wavFormatPCM = 1

// decodeWAV reads integer PCM WAV files with go-audio and downmixes them to
// mono in [-1, 1].
func (d *Decoder) decodeWAV(path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file %q", path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, errNeedsFFmpeg
	}
	rate := int(dec.SampleRate)
	if d.config.TargetSampleRate > 0 && d.config.TargetSampleRate != rate {
		return nil, errNeedsFFmpeg
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM buffer: %w", err)
	}

	samples := downmix(buf, int(dec.BitDepth))
	if d.config.MaxDuration > 0 {
		if limit := int(d.config.MaxDuration.Seconds() * float64(rate)); limit < len(samples) {
			samples = samples[:limit]
		}
	}
	return audio.NewBuffer(samples, rate)
}

// downmix averages interleaved channels and scales integer samples of the
// given bit depth to [-1, 1]. 8-bit WAV data is unsigned.
func downmix(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil
	}
	channels := max(buf.Format.NumChannels, 1)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}
