package decode

import (
	"errors"
	"math"
	"testing"

	"emgstream/internal/config"
)

func TestDecodeBipolarScenarios(t *testing.T) {
	d := Bipolar()
	cases := []struct {
		frame []byte
		want  float64
	}{
		{[]byte{0x00, 0x08}, 0.0},
		{[]byte{0x00, 0x00}, -1.0},
		{[]byte{0x00, 0x10}, 1.0},
	}
	for _, c := range cases {
		samples, err := d.Decode(c.frame)
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if len(samples) != 1 {
			t.Fatalf("expected 1 sample, got %d", len(samples))
		}
		if math.Abs(samples[0]-c.want) > 1e-12 {
			t.Fatalf("frame %v: got %v, want %v", c.frame, samples[0], c.want)
		}
	}
}

func TestDecodeUnipolar(t *testing.T) {
	d := Unipolar()
	samples, err := d.Decode([]byte{0x00, 0x10})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if math.Abs(samples[0]-1.0) > 1e-12 {
		t.Fatalf("got %v, want 1.0", samples[0])
	}
}

func TestDecodeSampleCount(t *testing.T) {
	d := Bipolar()
	frame := make([]byte, 10)
	samples, err := d.Decode(frame)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("expected len/2 samples, got %d", len(samples))
	}
}

func TestDecodeOddLength(t *testing.T) {
	d := Bipolar()
	samples, err := d.Decode([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("malformed frame must yield zero samples, got %d", len(samples))
	}
}

func TestNewDecoderRejectsZeroScale(t *testing.T) {
	if _, err := NewDecoder(config.DecoderConfig{Offset: 0, Scale: 0}); err == nil {
		t.Fatalf("expected construction error for zero scale")
	}
}

func TestDecodeLittleEndianOrder(t *testing.T) {
	d, err := NewDecoder(config.DecoderConfig{Offset: 0, Scale: 1})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	samples, err := d.Decode([]byte{0x34, 0x12})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if samples[0] != float64(0x1234) {
		t.Fatalf("got %v, want %v", samples[0], float64(0x1234))
	}
}
