package audio

import (
	"fmt"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// SamplesPerBuffer is the nominal batch size the work buffer is sized for.
const SamplesPerBuffer = 8192

// Resampler converts native-rate batches to the output rate using nearest-sample
// selection. It owns one interleaved work buffer that is reused by every call, so
// the result must be consumed before the next Resample.
type Resampler struct {
	channels   int
	outputRate int
	inputRate  int
	buf        []float32
}

func NewResampler(channels, outputRate, inputRate int) (*Resampler, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: only 1 or 2 channels supported, got %d", ErrConfiguration, channels)
	}
	if outputRate <= 0 || inputRate <= 0 {
		return nil, fmt.Errorf("%w: sample rates must be positive (output %d, input %d)",
			ErrConfiguration, outputRate, inputRate)
	}

	r := &Resampler{
		channels:   channels,
		outputRate: outputRate,
		inputRate:  inputRate,
	}
	r.grow(r.capacityFor(SamplesPerBuffer))
	return r, nil
}

func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) OutputRate() int { return r.outputRate }
func (r *Resampler) InputRate() int  { return r.inputRate }

// Buffer returns the work buffer holding the result of the last Resample call.
func (r *Resampler) Buffer() []float32 { return r.buf }

// Reset changes the rate ratio. Non-positive values keep the current rate.
// The work buffer only ever grows.
func (r *Resampler) Reset(outputRate, inputRate int) {
	if outputRate > 0 {
		r.outputRate = outputRate
	}
	if inputRate > 0 {
		r.inputRate = inputRate
	}
	r.grow(r.capacityFor(SamplesPerBuffer))
}

// OutputLength returns round(frames * outputRate / inputRate).
func (r *Resampler) OutputLength(frames int) int {
	if r.outputRate == r.inputRate {
		return frames
	}
	return (2*frames*r.outputRate + r.inputRate) / (2 * r.inputRate)
}

// capacityFor is ceil(frames * outputRate / inputRate) * channels.
func (r *Resampler) capacityFor(frames int) int {
	return (frames*r.outputRate + r.inputRate - 1) / r.inputRate * r.channels
}

func (r *Resampler) grow(n int) {
	if n > len(r.buf) {
		r.buf = make([]float32, n)
	}
}

// Resample converts b into the work buffer and returns the number of output frames.
func (r *Resampler) Resample(b types.SampleBatch, rd types.SampleReader) int {
	if b.Frames <= 0 {
		return 0
	}

	if r.outputRate == r.inputRate {
		return r.copyBatch(b, rd)
	}

	outLen := r.OutputLength(b.Frames)
	if outLen == 0 {
		return 0
	}
	r.grow(outLen * r.channels)

	for ch := range r.channels {
		r.resampleChannel(ch, b, rd, outLen)
	}
	return outLen
}

func (r *Resampler) copyBatch(b types.SampleBatch, rd types.SampleReader) int {
	n := b.Frames * r.channels
	r.grow(n)

	if copier, ok := rd.(types.SampleCopier); ok {
		copier.CopySamples(r.buf[:n], b)
		return b.Frames
	}
	for i := range n {
		r.buf[i] = rd.ReadSample(b, i)
	}
	return b.Frames
}

// resampleChannel walks the line from (0, 0) to (outLen-1, inLen-1) one output
// index at a time and picks the nearest input index for each. err holds
// 2*(x*dy - y*dx) so no division or float is needed inside the loop.
func (r *Resampler) resampleChannel(ch int, b types.SampleBatch, rd types.SampleReader, outLen int) {
	channels := r.channels
	dx := outLen - 1
	dy := b.Frames - 1

	if dx == 0 {
		r.buf[ch] = rd.ReadSample(b, ch)
		return
	}

	y, err := 0, 0
	for x := 0; x <= dx; x++ {
		for err >= dx {
			y++
			err -= 2 * dx
		}
		r.buf[x*channels+ch] = rd.ReadSample(b, y*channels+ch)
		err += 2 * dy
	}
}
