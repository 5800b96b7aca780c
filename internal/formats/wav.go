package formats

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

type wavSource struct {
	dec      *wav.Decoder
	channels int
	rate     int
	scale    float32
	offset   int
	buf      *audio.IntBuffer
}

func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("read pcm: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v-s.offset) / s.scale
	}
	return n, nil
}

// WAVDecoder reads integer PCM RIFF/WAVE files.
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrUnknownFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedLayout, dec.WavAudioFormat)
	}

	src := &wavSource{
		dec:      dec,
		channels: int(dec.NumChans),
		rate:     int(dec.SampleRate),
		buf:      &audio.IntBuffer{},
	}
	switch dec.BitDepth {
	case 8:
		// 8-bit WAV data is unsigned
		src.scale, src.offset = 128, 128
	case 16, 24, 32:
		src.scale = float32(int64(1) << (dec.BitDepth - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedLayout, dec.BitDepth)
	}
	return src, nil
}
