package output

import (
	"math"
)

// Streamer is a beep.Streamer that renders fixed-size chunks and hands them
// out in whatever sizes the mixer asks for. It never drains; a paused or
// finished session simply renders silence.
type Streamer struct {
	r     Renderer
	chunk [][]float32
	pos   int
}

func NewStreamer(r Renderer, chunkSize int) *Streamer {
	return &Streamer{
		r:     r,
		chunk: [][]float32{make([]float32, chunkSize), make([]float32, chunkSize)},
		pos:   chunkSize,
	}
}

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	size := len(s.chunk[0])
	for i := range samples {
		if s.pos == size {
			s.r.Render(s.chunk)
			s.pos = 0
		}
		samples[i][0] = float64(s.chunk[0][s.pos])
		samples[i][1] = float64(s.chunk[1][s.pos])
		s.pos++
	}
	return len(samples), true
}

func (s *Streamer) Err() error { return nil }

// volumeExponent maps a linear 0..1 volume onto the base-2 exponent used by
// effects.Volume.
func volumeExponent(v float64) float64 {
	return (v - 1) * 5
}

func gain(v float64) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Pow(2, volumeExponent(v)))
}
