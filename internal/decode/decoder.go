package decode

import (
	"errors"
	"fmt"

	"emgstream/internal/config"
)

// ErrMalformedFrame reports a frame whose length is not a multiple of the
// 2-byte sample width. The frame yields no samples; decoding resumes on
// the next frame.
var ErrMalformedFrame = errors.New("malformed frame: odd byte length")

// Decoder turns raw wire bytes into normalized amplitude samples. Each
// sample is one little-endian 16-bit unsigned integer mapped through the
// affine normalization (raw - offset) / scale.
type Decoder struct {
	offset float64
	scale  float64
}

func NewDecoder(cfg config.DecoderConfig) (*Decoder, error) {
	if cfg.Scale == 0 {
		return nil, errors.New("decoder scale must be non-zero")
	}
	return &Decoder{offset: cfg.Offset, scale: cfg.Scale}, nil
}

// Unipolar maps raw values into roughly [0, 1].
func Unipolar() *Decoder {
	return &Decoder{offset: 0, scale: 4096}
}

// Bipolar maps raw values into roughly [-1, 1].
func Bipolar() *Decoder {
	return &Decoder{offset: 2048, scale: 2048}
}

// Decode is pure and synchronous: it produces exactly len(frame)/2 samples
// for an even-length frame and nothing for a malformed one.
func (d *Decoder) Decode(frame []byte) ([]float64, error) {
	if len(frame)%2 != 0 {
		return nil, fmt.Errorf("%w (%d bytes)", ErrMalformedFrame, len(frame))
	}
	samples := make([]float64, 0, len(frame)/2)
	for i := 0; i < len(frame); i += 2 {
		raw := uint16(frame[i]) | uint16(frame[i+1])<<8
		samples = append(samples, (float64(raw)-d.offset)/d.scale)
	}
	return samples, nil
}
