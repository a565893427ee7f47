package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembler_Combine_InsertsSilenceBetweenSegments(t *testing.T) {
	a := NewAssembler(500*time.Millisecond, 16000)

	seg1 := MakeWAV(16000, make([]int16, 100))
	seg2 := MakeWAV(16000, make([]int16, 50))

	out, err := a.Combine([][]byte{seg1, seg2})
	require.NoError(t, err)

	// 100 + 50 samples of speech plus 8000 samples of gap (500ms at 16kHz).
	wantData := (100 + 50 + 8000) * 2
	assert.Equal(t, headerSize+wantData, len(out))
	assert.Equal(t, "RIFF", string(out[:4]))
	assert.Equal(t, uint32(wantData), binary.LittleEndian.Uint32(out[40:44]))
}

func TestAssembler_Combine_SingleSegmentHasNoGap(t *testing.T) {
	a := NewAssembler(500*time.Millisecond, 16000)

	seg := MakeWAV(16000, make([]int16, 64))
	out, err := a.Combine([][]byte{seg})
	require.NoError(t, err)
	assert.Equal(t, headerSize+64*2, len(out))
}

func TestAssembler_Combine_IsPure(t *testing.T) {
	a := NewAssembler(100*time.Millisecond, 16000)

	samples := []int16{1, 2, 3, 4}
	seg1 := MakeWAV(16000, samples)
	seg2 := MakeWAV(16000, samples)
	input := [][]byte{seg1, seg2}

	first, err := a.Combine(input)
	require.NoError(t, err)
	second, err := a.Combine(input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Inputs are untouched.
	assert.Equal(t, MakeWAV(16000, samples), seg1)
}

func TestAssembler_Combine_RejectsEmptyAndInvalidInput(t *testing.T) {
	a := NewAssembler(500*time.Millisecond, 16000)

	_, err := a.Combine(nil)
	require.Error(t, err)

	_, err = a.Combine([][]byte{[]byte("not audio")})
	require.Error(t, err)
}

func TestAssembler_Duration(t *testing.T) {
	a := NewAssembler(0, 16000)

	wav := MakeWAV(16000, make([]int16, 16000))
	assert.InDelta(t, 1.0, a.Duration(wav), 1e-9)
	assert.Equal(t, 0.0, a.Duration(nil))
}

func TestAssembler_Normalize_ScalesPeakTowardFullScale(t *testing.T) {
	a := NewAssembler(0, 16000)

	wav := MakeWAV(16000, []int16{100, -200, 50})
	out := a.Normalize(wav)
	require.Len(t, out, len(wav))

	peak := 0
	for i := headerSize; i+1 < len(out); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(out[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	assert.InDelta(t, normalizeTarget, peak, 1)

	// The original buffer is left alone.
	assert.Equal(t, MakeWAV(16000, []int16{100, -200, 50}), wav)
}

func TestAssembler_Normalize_SilenceUnchanged(t *testing.T) {
	a := NewAssembler(0, 16000)

	wav := MakeWAV(16000, make([]int16, 10))
	assert.Equal(t, wav, a.Normalize(wav))
}
