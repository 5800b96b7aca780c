package audio

import (
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// maxEmptyPulls bounds how many zero-length batches one callback accepts
// before it gives up and pads the chunk with silence.
const maxEmptyPulls = 64

// RenderCursor tracks how far the current chunk is filled and how much of the
// last resampled batch is still waiting to be copied.
type RenderCursor struct {
	SamplesRendered int
	SamplesPending  int
	BatchReadIndex  int
}

func (c *RenderCursor) Reset() {
	c.SamplesRendered = 0
	c.SamplesPending = 0
	c.BatchReadIndex = 0
}

// Ticker is an optional observer driven by the render callback.
type Ticker interface {
	StepWidth() int
	Init(samplesPerBuffer, stepWidth int)
	ComputeNotify()
	CalcTickData(out [][]float32)
}

// Render fills every sample of out with audio or silence. All channel slices
// must have the same length. It never blocks on I/O and never fails.
func (s *Session) Render(out [][]float32) {
	if len(out) == 0 || len(out[0]) == 0 {
		return
	}

	s.mu.Lock()
	s.renderLocked(out)
	s.unlock()
}

func (s *Session) renderLocked(out [][]float32) {
	size := len(out[0])

	if s.closed || s.paused || s.waiting || !s.songReady {
		silence(out, 0)
		s.afterRender(out)
		return
	}

	s.cursor.SamplesRendered = 0
	s.emptyPulls = 0
	for s.cursor.SamplesRendered < size {
		if s.cursor.SamplesPending == 0 {
			status, forced := s.pull()
			if status != types.StatusOK || s.waiting {
				silence(out, s.cursor.SamplesRendered)
				s.stop(status, forced)
				s.afterRender(out)
				return
			}

			batch := s.backend.Batch()
			s.cursor.SamplesPending = s.resampler.Resample(batch, s.backend)
			s.cursor.BatchReadIndex = 0

			if s.cursor.SamplesPending == 0 {
				s.emptyPulls++
				if s.emptyPulls > maxEmptyPulls {
					silence(out, s.cursor.SamplesRendered)
					s.afterRender(out)
					return
				}
				continue
			}
		}

		if s.resampler.Channels() == 2 {
			s.copyStereo(out, size)
		} else {
			s.copyMono(out, size)
		}
	}

	s.playtime += size
	s.afterRender(out)
}

// pull asks the backend for the next batch unless the playback limit is hit.
func (s *Session) pull() (types.Status, bool) {
	if s.timeout > 0 && s.playtime > s.timeout {
		return types.StatusEnd, true
	}
	status := s.backend.ComputeNextBatch()
	if s.ticker != nil {
		s.ticker.ComputeNotify()
	}
	return status, false
}

func (s *Session) stop(status types.Status, forced bool) {
	s.cursor.SamplesPending = 0
	s.cursor.BatchReadIndex = 0

	if status < 0 {
		s.paused = true
		s.songReady = false
		s.waiting = true
		s.state = StateWaitingResource
		if s.attempt == nil && s.loaded != nil {
			s.attempt = s.loaded
		}
		s.trace("render paused: backend is missing a resource")
		return
	}

	// A backend that asked for a resource but reported something else is
	// still waiting; RequestResource already armed the replay.
	if s.waiting {
		return
	}

	reason := EndOfTrack
	switch {
	case forced:
		reason = EndTimeout
	case status.IsError():
		reason = EndError
	}
	s.paused = true
	if s.ended {
		return
	}
	s.ended = true
	s.trace("track end: %s (status %d)", reason, status)

	filename := ""
	if s.loaded != nil {
		filename = s.loaded.Filename
	}
	s.emit(EventTrackEnd, TrackEnd{Filename: filename, Reason: reason, Status: status})
}

func (s *Session) copyStereo(out [][]float32, size int) {
	c := &s.cursor
	n := min(size-c.SamplesRendered, c.SamplesPending)
	src := s.resampler.Buffer()[c.BatchReadIndex : c.BatchReadIndex+2*n]
	left := out[0][c.SamplesRendered : c.SamplesRendered+n]

	if len(out) > 1 {
		right := out[1][c.SamplesRendered : c.SamplesRendered+n]
		for i := range n {
			left[i] = src[2*i]
			right[i] = src[2*i+1]
		}
		for ch := 2; ch < len(out); ch++ {
			clear(out[ch][c.SamplesRendered : c.SamplesRendered+n])
		}
	} else {
		for i := range n {
			left[i] = src[2*i]
		}
	}

	c.BatchReadIndex += 2 * n
	c.SamplesRendered += n
	c.SamplesPending -= n
}

func (s *Session) copyMono(out [][]float32, size int) {
	c := &s.cursor
	n := min(size-c.SamplesRendered, c.SamplesPending)
	src := s.resampler.Buffer()[c.BatchReadIndex : c.BatchReadIndex+n]

	for ch := range out {
		copy(out[ch][c.SamplesRendered:c.SamplesRendered+n], src)
	}

	c.BatchReadIndex += n
	c.SamplesRendered += n
	c.SamplesPending -= n
}

func silence(out [][]float32, from int) {
	for ch := range out {
		if from < len(out[ch]) {
			clear(out[ch][from:])
		}
	}
}

func (s *Session) afterRender(out [][]float32) {
	if s.ticker == nil {
		return
	}
	s.ticker.CalcTickData(out)
	s.currentTick = 0
}

// Tick advances the external ticker position within the current chunk.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTick++
}

// CurrentTick is the ticker position, capped to the last step of a chunk.
func (s *Session) CurrentTick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := (s.chunkSize+s.tickStep-1)/s.tickStep - 1
	return min(last, s.currentTick)
}
