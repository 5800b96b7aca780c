package output

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

// Speaker plays a session through the beep speaker.
type Speaker struct {
	streamer *Streamer
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	debug    bool
}

func NewSpeaker(r Renderer, opts Options) (*Speaker, error) {
	rate := beep.SampleRate(opts.SampleRate)
	if err := initSpeaker(rate, opts.ChunkSize, opts.Debug); err != nil {
		return nil, err
	}

	s := &Speaker{streamer: NewStreamer(r, opts.ChunkSize), debug: opts.Debug}
	s.ctrl = &beep.Ctrl{Streamer: s.streamer}
	s.volume = &effects.Volume{
		Streamer: s.ctrl,
		Base:     2,
		Volume:   volumeExponent(opts.Volume),
		Silent:   opts.Volume == 0,
	}
	return s, nil
}

// The speaker can only be initialized once per process.
func initSpeaker(rate beep.SampleRate, bufferSize int, debug bool) error {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate != 0 {
		if speakerRate != rate {
			return fmt.Errorf("speaker already running at %d Hz", speakerRate)
		}
		debugLog(debug, "Speaker already initialized")
		return nil
	}

	debugLog(debug, "Initializing speaker with sample rate %d, buffer size %d", rate, bufferSize)
	if err := speaker.Init(rate, bufferSize); err != nil {
		return fmt.Errorf("speaker initialization failed: %w", err)
	}
	speakerRate = rate
	return nil
}

func (s *Speaker) Start() error {
	speaker.Clear()
	speaker.Play(s.volume)
	debugLog(s.debug, "Speaker playback started")
	return nil
}

func (s *Speaker) SetPaused(paused bool) {
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

func (s *Speaker) SetVolume(volume float64) {
	speaker.Lock()
	s.volume.Volume = volumeExponent(volume)
	s.volume.Silent = volume == 0
	speaker.Unlock()
	debugLog(s.debug, "Volume set to: %.2f", volume)
}

func (s *Speaker) Close() error {
	speaker.Clear()
	debugLog(s.debug, "Speaker closed")
	return nil
}
