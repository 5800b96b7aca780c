// Package output connects a Session render callback to real or offline sinks.
package output

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Alexander-D-Karpov/streamplayer/internal/config"
)

var ErrUnknownOutput = errors.New("unknown output")

// Renderer is the host-facing side of a session.
type Renderer interface {
	Render(out [][]float32)
}

// Output is a running audio sink.
type Output interface {
	Start() error
	SetVolume(volume float64)
	Close() error
}

type Options struct {
	SampleRate int
	ChunkSize  int
	Volume     float64
	Debug      bool
}

// New opens the named output driver.
func New(name string, r Renderer, opts Options) (Output, error) {
	switch strings.ToLower(name) {
	case "", config.OutputSpeaker:
		return NewSpeaker(r, opts)
	case config.OutputPortAudio:
		return NewPortAudio(r, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
	}
}

func debugLog(debug bool, format string, args ...interface{}) {
	if debug {
		log.Printf("[OUTPUT] "+format, args...)
	}
}
