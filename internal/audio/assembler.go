package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	headerSize     = 44
	bytesPerSample = 2

	// normalizeTarget leaves ~0.1 dB of headroom below full scale.
	normalizeTarget = 32392
)

// Assembler concatenates per-line WAV buffers into one playable artifact,
// inserting a silence gap between entries. The synthesis provider returns
// 16-bit mono PCM at a fixed sample rate, so assembly is plain sample-data
// concatenation under a rewritten RIFF header.
//
// Combine is a pure function of its input: it never retains or mutates the
// buffers it is given, so it can be called repeatedly with a growing set of
// completed lines to materialize every partial artifact as well as the final
// one.
type Assembler struct {
	pause      time.Duration
	sampleRate int
}

func NewAssembler(pause time.Duration, sampleRate int) *Assembler {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Assembler{pause: pause, sampleRate: sampleRate}
}

// Combine joins the given WAV buffers in order with a silence gap between
// each pair and returns a single WAV buffer.
func (a *Assembler) Combine(segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no audio segments to combine")
	}

	gap := a.silence()
	dataLen := 0
	for i, seg := range segments {
		if err := validateWAV(seg); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		dataLen += len(seg) - headerSize
		if i < len(segments)-1 {
			dataLen += len(gap)
		}
	}

	out := bytes.NewBuffer(make([]byte, 0, headerSize+dataLen))
	writeWAVHeader(out, dataLen, a.sampleRate)
	for i, seg := range segments {
		out.Write(seg[headerSize:])
		if i < len(segments)-1 {
			out.Write(gap)
		}
	}
	return out.Bytes(), nil
}

// Duration reports the playback length of a WAV buffer in seconds.
func (a *Assembler) Duration(wav []byte) float64 {
	if len(wav) <= headerSize {
		return 0
	}
	samples := (len(wav) - headerSize) / bytesPerSample
	return float64(samples) / float64(a.sampleRate)
}

// Normalize scales the samples so the peak sits just below full scale and
// returns a new buffer. Silent input is returned unchanged.
func (a *Assembler) Normalize(wav []byte) []byte {
	if err := validateWAV(wav); err != nil {
		return wav
	}

	data := wav[headerSize:]
	peak := 0
	for i := 0; i+1 < len(data); i += bytesPerSample {
		s := int(int16(binary.LittleEndian.Uint16(data[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		return wav
	}

	scale := float64(normalizeTarget) / float64(peak)
	out := make([]byte, len(wav))
	copy(out, wav[:headerSize])
	for i := 0; i+1 < len(data); i += bytesPerSample {
		s := float64(int16(binary.LittleEndian.Uint16(data[i:]))) * scale
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[headerSize+i:], uint16(int16(s)))
	}
	return out
}

func (a *Assembler) silence() []byte {
	samples := int(a.pause.Milliseconds()) * a.sampleRate / 1000
	return make([]byte, samples*bytesPerSample)
}

func validateWAV(wav []byte) error {
	if len(wav) < headerSize {
		return fmt.Errorf("buffer too short for a WAV header (%d bytes)", len(wav))
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		return fmt.Errorf("not a RIFF/WAVE buffer")
	}
	return nil
}

// writeWAVHeader emits a canonical 44-byte header for 16-bit mono PCM.
func writeWAVHeader(buf *bytes.Buffer, dataLen, sampleRate int) {
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*bytesPerSample))
	binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
}

// MakeWAV builds a WAV buffer from raw 16-bit mono samples.
func MakeWAV(sampleRate int, samples []int16) []byte {
	buf := bytes.NewBuffer(nil)
	writeWAVHeader(buf, len(samples)*bytesPerSample, sampleRate)
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, uint16(s))
	}
	return buf.Bytes()
}
