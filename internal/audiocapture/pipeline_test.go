package audiocapture

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeF32LE_RoundTrips(t *testing.T) {
	want := []float32{0, 1.5, -1.5, 3.14159}
	raw := make([]byte, len(want)*4)
	for i, s := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}

	got := decodeF32LE(raw)
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeF32LE_EmptyInput(t *testing.T) {
	if got := decodeF32LE(nil); len(got) != 0 {
		t.Fatalf("expected no samples for empty input, got %d", len(got))
	}
}
