package audio

import (
	"fmt"

	"github.com/Alexander-D-Karpov/streamplayer/internal/cache"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// InitializationAttempt is everything needed to replay a track load from the top.
type InitializationAttempt struct {
	Generation  uint64
	ResourceKey string
	Filename    string
	Data        []byte
	Options     types.TrackOptions
}

// LoadTrack starts loading a track. A nil error with State() == StateWaitingResource
// means the backend asked for a resource; the load is replayed when it arrives.
// Any previous outstanding attempt is invalidated.
func (s *Session) LoadTrack(filename string, data []byte, opts types.TrackOptions) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.generation++
	s.attempt = &InitializationAttempt{
		Generation:  s.generation,
		ResourceKey: s.backend.MapCacheFilename(filename),
		Filename:    filename,
		Data:        data,
		Options:     opts,
	}
	s.loaded = nil
	s.paused = true
	s.songReady = false
	s.waiting = false
	s.ended = false
	if opts.Timeout != 0 {
		s.setTimeoutLocked(opts.Timeout)
	}

	return s.runAttempt()
}

// Attempt returns a copy of the outstanding attempt, if any.
func (s *Session) Attempt() (InitializationAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return InitializationAttempt{}, false
	}
	return *s.attempt, true
}

func (s *Session) runAttempt() error {
	a := s.attempt
	s.state = StateAttempting
	s.initInProgress = true
	defer func() { s.initInProgress = false }()

	s.backend.Teardown()

	path, name := s.backend.PathAndFilename(a.Filename)
	if a.Data != nil {
		s.backend.RegisterFileData(path, name, a.Data)
		s.cache.Put(a.ResourceKey, a.Data)
	}

	status := s.backend.LoadTrackData(s.outputRate, path, name, a.Data, a.Options)
	switch {
	case status < 0:
		s.enterWaiting("load")
		return nil
	case status != types.StatusOK:
		return s.fail(status, "load")
	}

	s.cursor.Reset()
	s.resampler.Reset(0, s.backend.InputSampleRate())
	s.playtime = 0
	s.waiting = false
	s.songReady = true
	s.songInfo = types.SongInfo{}

	status = s.backend.SelectTrackOptions(a.Options)
	switch {
	case status < 0:
		s.enterWaiting("track options")
		return nil
	case status != types.StatusOK:
		return s.fail(status, "track options")
	}

	s.backend.UpdateSongInfo(a.Filename, s.songInfo)

	s.state = StateReady
	s.loaded = a
	s.attempt = nil
	s.ended = false
	s.paused = false
	s.trace("track ready: %s", a.Filename)
	s.emit(EventTrackReady, TrackReady{Filename: a.Filename, Info: s.songInfo.Clone()})
	return nil
}

func (s *Session) enterWaiting(step string) {
	s.state = StateWaitingResource
	s.waiting = true
	s.songReady = false
	s.paused = true
	s.trace("%s of %s waiting for a resource", step, s.attempt.Filename)
}

func (s *Session) fail(status types.Status, step string) error {
	filename := s.attempt.Filename
	err := fmt.Errorf("%w: %s of %s returned status %d", ErrUnrecoverableInit, step, filename, status)

	s.state = StateFailed
	s.waiting = false
	s.songReady = false
	s.paused = true
	s.attempt = nil
	s.loaded = nil
	s.trace("%v", err)
	s.emit(EventLoadFailed, LoadFailed{Filename: filename, Status: status, Err: err})
	return err
}

// HandleEvent applies one inbound event on the session context.
func (s *Session) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return
	}

	switch e := ev.(type) {
	case ResourceArrived:
		s.handleResourceArrived(e)
	case adapterReady:
		s.checkPlayerReady()
	}
}

func (s *Session) handleResourceArrived(e ResourceArrived) {
	if s.attempt == nil || e.Generation != s.attempt.Generation {
		s.trace("dropping stale resource %s (generation %d)", e.Key, e.Generation)
		return
	}

	if e.Err == nil {
		s.cache.Put(e.Key, e.Data)
		path, name := s.backend.PathAndFilename(e.Name)
		s.backend.RegisterFileData(path, name, e.Data)
	} else {
		s.cache.PutFailed(e.Key)
		s.trace("resource %s unavailable: %v", e.Key, e.Err)
	}

	if s.state != StateWaitingResource {
		return
	}
	// failures are surfaced by the replay when the backend sees the cached sentinel
	_ = s.runAttempt()
}

// RequestResource implements types.Host. A miss starts a fetch and marks the
// session as waiting; the backend is expected to return StatusMissingResource.
func (s *Session) RequestResource(name string) ([]byte, types.ResourceStatus) {
	full := s.backend.MapBackendFilename(name)
	key := s.backend.MapCacheFilename(full)

	data, lookup := s.cache.Get(key)
	switch lookup {
	case cache.Available:
		return data, types.ResourceAvailable
	case cache.Failed:
		s.trace("resource %s previously failed", key)
		return nil, types.ResourceFailed
	}

	if s.fetcher == nil {
		s.trace("no fetcher configured for %s", key)
		s.cache.PutFailed(key)
		return nil, types.ResourceFailed
	}

	// A backend may ask mid-playback and still report OK or end; the
	// loaded track is replayed either way once the resource is in.
	if s.attempt == nil && s.loaded != nil {
		s.attempt = s.loaded
	}
	s.paused = true
	s.waiting = true
	s.songReady = false
	s.state = StateWaitingResource

	gen := s.generation
	s.trace("requesting resource %s", key)
	s.fetcher.Request(key, func(data []byte, err error) {
		s.post(ResourceArrived{Key: key, Name: full, Generation: gen, Data: data, Err: err})
	})
	return nil, types.ResourcePending
}

func (s *Session) ResourceSize(name string) int {
	key := s.backend.MapCacheFilename(s.backend.MapBackendFilename(name))
	data, lookup := s.cache.Get(key)
	if lookup != cache.Available {
		return -1
	}
	return len(data)
}

// SongUpdate implements types.Host; it must be called from within a backend operation.
func (s *Session) SongUpdate(attrs map[string]string) {
	s.backend.HandleSongAttributes(attrs, s.songInfo)
	s.emit(EventSongInfoUpdated, SongInfoUpdated{Info: s.songInfo.Clone()})
}

// AdapterReady implements types.Host. It may be called from any goroutine.
func (s *Session) AdapterReady() {
	s.post(adapterReady{})
}
