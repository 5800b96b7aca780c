package handlers

import (
	"log"
	"sync"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
)

// PlaybackHandlers turns session notifications into what a front end needs:
// log lines and a signal once the current track is over.
type PlaybackHandlers struct {
	debug bool

	mu       sync.Mutex
	done     chan struct{}
	closed   bool
	lastEnd  *audio.TrackEnd
	lastFail *audio.LoadFailed

	onTrackReady func(audio.TrackReady)
	onSongInfo   func(audio.SongInfoUpdated)
}

func NewPlaybackHandlers(bus *EventBus, debug bool) *PlaybackHandlers {
	h := &PlaybackHandlers{debug: debug, done: make(chan struct{})}

	bus.Subscribe(audio.EventTrackReady, h.handleTrackReady)
	bus.Subscribe(audio.EventSongInfoUpdated, h.handleSongInfo)
	bus.Subscribe(audio.EventTrackEnd, h.handleTrackEnd)
	bus.Subscribe(audio.EventLoadFailed, h.handleLoadFailed)
	bus.Subscribe(audio.EventPlayerReady, func(interface{}) {
		if h.debug {
			log.Printf("[PLAYER] Player ready")
		}
	})
	return h
}

func (h *PlaybackHandlers) OnTrackReady(callback func(audio.TrackReady)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTrackReady = callback
}

func (h *PlaybackHandlers) OnSongInfo(callback func(audio.SongInfoUpdated)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSongInfo = callback
}

// Done is closed after the first track end or load failure.
func (h *PlaybackHandlers) Done() <-chan struct{} { return h.done }

// Result reports how playback finished; both are nil while it is still going.
func (h *PlaybackHandlers) Result() (*audio.TrackEnd, *audio.LoadFailed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastEnd, h.lastFail
}

func (h *PlaybackHandlers) handleTrackReady(data interface{}) {
	ev, ok := data.(audio.TrackReady)
	if !ok {
		return
	}
	if h.debug {
		log.Printf("[PLAYER] Track ready: %s %v", ev.Filename, ev.Info)
	}

	h.mu.Lock()
	callback := h.onTrackReady
	h.mu.Unlock()
	if callback != nil {
		callback(ev)
	}
}

func (h *PlaybackHandlers) handleSongInfo(data interface{}) {
	ev, ok := data.(audio.SongInfoUpdated)
	if !ok {
		return
	}

	h.mu.Lock()
	callback := h.onSongInfo
	h.mu.Unlock()
	if callback != nil {
		callback(ev)
	}
}

func (h *PlaybackHandlers) handleTrackEnd(data interface{}) {
	ev, ok := data.(audio.TrackEnd)
	if !ok {
		return
	}
	if h.debug {
		log.Printf("[PLAYER] Track end: %s (%s)", ev.Filename, ev.Reason)
	}

	h.mu.Lock()
	h.lastEnd = &ev
	h.mu.Unlock()
	h.finish()
}

func (h *PlaybackHandlers) handleLoadFailed(data interface{}) {
	ev, ok := data.(audio.LoadFailed)
	if !ok {
		return
	}
	log.Printf("[PLAYER] Failed to load %s: %v", ev.Filename, ev.Err)

	h.mu.Lock()
	h.lastFail = &ev
	h.mu.Unlock()
	h.finish()
}

func (h *PlaybackHandlers) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
}
