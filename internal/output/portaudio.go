package output

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudio drives the render callback directly from the default output
// device, one chunk per callback.
type PortAudio struct {
	stream *portaudio.Stream
	gain   atomic.Uint32
	debug  bool
}

func NewPortAudio(r Renderer, opts Options) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio initialization failed: %w", err)
	}

	p := &PortAudio{debug: opts.Debug}
	p.SetVolume(opts.Volume)

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(opts.SampleRate), opts.ChunkSize, func(out [][]float32) {
		r.Render(out)
		applyGain(out, math.Float32frombits(p.gain.Load()))
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	p.stream = stream

	debugLog(p.debug, "PortAudio stream opened: %d Hz, %d frames per buffer", opts.SampleRate, opts.ChunkSize)
	return p, nil
}

func applyGain(out [][]float32, g float32) {
	if g == 1 {
		return
	}
	for _, ch := range out {
		for i := range ch {
			ch[i] *= g
		}
	}
}

func (p *PortAudio) Start() error {
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	return nil
}

func (p *PortAudio) SetVolume(volume float64) {
	p.gain.Store(math.Float32bits(gain(volume)))
}

func (p *PortAudio) Close() error {
	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stop output stream: %w", err)
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close output stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	debugLog(p.debug, "PortAudio closed")
	return firstErr
}
