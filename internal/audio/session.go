package audio

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Alexander-D-Karpov/streamplayer/internal/cache"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

const (
	MinChunkSize     = 256
	MaxChunkSize     = 16384
	DefaultChunkSize = 8192

	defaultEventBuffer = 64
)

// ValidateChunkSize accepts the power-of-two chunk lengths a host may request.
func ValidateChunkSize(n int) error {
	if n < MinChunkSize || n > MaxChunkSize || n&(n-1) != 0 {
		return fmt.Errorf("%w: chunk size %d is not a power of two in [%d, %d]",
			ErrConfiguration, n, MinChunkSize, MaxChunkSize)
	}
	return nil
}

type State int

const (
	StateIdle State = iota
	StateAttempting
	StateReady
	StateWaitingResource
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAttempting:
		return "Attempting"
	case StateReady:
		return "Ready"
	case StateWaitingResource:
		return "WaitingResource"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type Options struct {
	OutputRate        int
	ChunkSize         int
	PlaybackTimeoutMs int
	Cache             *cache.ResourceCache
	Fetcher           types.Fetcher
	Notifier          types.Notifier
	Ticker            Ticker
	EventBuffer       int
	Debug             bool
}

// Session owns one backend together with its resample state, render cursor and
// retry state. Every mutation happens under mu, which is the single logical
// execution context shared by the render callback and the event loop.
type Session struct {
	backend   types.Backend
	resampler *Resampler
	cache     *cache.ResourceCache
	fetcher   types.Fetcher
	notifier  types.Notifier
	ticker    Ticker

	outputRate int
	chunkSize  int
	tickStep   int

	cursor      RenderCursor
	playtime    int
	timeout     int
	currentTick int
	emptyPulls  int

	state          State
	paused         bool
	songReady      bool
	waiting        bool
	initInProgress bool
	ended          bool
	preloaded      bool
	playerReady    bool
	closed         bool

	generation uint64
	attempt    *InitializationAttempt
	loaded     *InitializationAttempt
	songInfo   types.SongInfo

	events chan Event
	done   chan struct{}
	outbox []notification

	debug bool
	mu    sync.Mutex
}

func NewSession(backend types.Backend, opts Options) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrConfiguration)
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if err := ValidateChunkSize(opts.ChunkSize); err != nil {
		return nil, err
	}
	if opts.OutputRate <= 0 {
		return nil, fmt.Errorf("%w: output rate must be positive, got %d", ErrConfiguration, opts.OutputRate)
	}

	inputRate := backend.InputSampleRate()
	if inputRate <= 0 {
		inputRate = opts.OutputRate
	}
	resampler, err := NewResampler(backend.Channels(), opts.OutputRate, inputRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	if opts.Cache == nil {
		opts.Cache = cache.New()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}

	s := &Session{
		backend:    backend,
		resampler:  resampler,
		cache:      opts.Cache,
		fetcher:    opts.Fetcher,
		notifier:   opts.Notifier,
		ticker:     opts.Ticker,
		outputRate: opts.OutputRate,
		chunkSize:  opts.ChunkSize,
		tickStep:   opts.ChunkSize,
		timeout:    -1,
		paused:     true,
		songInfo:   types.SongInfo{},
		events:     make(chan Event, opts.EventBuffer),
		done:       make(chan struct{}),
		outbox:     make([]notification, 0, 8),
		debug:      opts.Debug,
	}
	s.setTimeoutLocked(opts.PlaybackTimeoutMs)

	if s.ticker != nil {
		s.tickStep = s.ticker.StepWidth()
		if s.tickStep <= 0 {
			s.tickStep = s.chunkSize
		}
		s.ticker.Init(s.chunkSize, s.tickStep)
	}

	backend.SetHost(s)
	s.trace("session created: %d channel(s), output %d Hz, input %d Hz, chunk %d",
		backend.Channels(), opts.OutputRate, inputRate, opts.ChunkSize)
	return s, nil
}

func (s *Session) trace(format string, args ...interface{}) {
	if s.debug {
		log.Printf("[SESSION] "+format, args...)
	}
}

// emit queues a notification; it is published once mu has been released.
func (s *Session) emit(eventType string, data interface{}) {
	s.outbox = append(s.outbox, notification{eventType: eventType, data: data})
}

func (s *Session) takeOutbox() []notification {
	if len(s.outbox) == 0 {
		return nil
	}
	out := make([]notification, len(s.outbox))
	copy(out, s.outbox)
	for i := range s.outbox {
		s.outbox[i] = notification{}
	}
	s.outbox = s.outbox[:0]
	return out
}

func (s *Session) publish(notes []notification) {
	if s.notifier == nil {
		return
	}
	for _, n := range notes {
		s.notifier.Publish(n.eventType, n.data)
	}
}

// unlock releases mu and then delivers whatever the locked section queued.
func (s *Session) unlock() {
	notes := s.takeOutbox()
	s.mu.Unlock()
	s.publish(notes)
}

func (s *Session) Backend() types.Backend { return s.backend }

func (s *Session) Cache() *cache.ResourceCache { return s.cache }

func (s *Session) OutputRate() int { return s.outputRate }

func (s *Session) ChunkSize() int { return s.chunkSize }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Session) IsWaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

func (s *Session) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) IsStereo() bool { return s.backend.Channels() == 2 }

// Play starts or continues rendering of the loaded track.
func (s *Session) Play() {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return
	}
	s.paused = false
}

// Pause is ignored while a resource is awaited, an attempt runs or no song is ready.
func (s *Session) Pause() bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.canTogglePause() {
		return false
	}
	s.paused = true
	return true
}

func (s *Session) Resume() bool {
	s.mu.Lock()
	defer s.unlock()
	if !s.canTogglePause() || s.ended {
		return false
	}
	s.paused = false
	return true
}

func (s *Session) canTogglePause() bool {
	return !s.closed && !s.waiting && !s.initInProgress && s.songReady
}

// SetPlaybackTimeout limits playback to ms milliseconds; negative disables the limit.
func (s *Session) SetPlaybackTimeout(ms int) {
	s.mu.Lock()
	defer s.unlock()
	s.setTimeoutLocked(ms)
}

func (s *Session) setTimeoutLocked(ms int) {
	s.playtime = 0
	if ms < 0 {
		s.timeout = -1
		return
	}
	s.timeout = ms * s.outputRate / 1000
}

// PlaybackTimeout returns the limit in seconds, or -1 when unlimited.
func (s *Session) PlaybackTimeout() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeout < 0 {
		return -1
	}
	return (s.timeout + s.outputRate/2) / s.outputRate
}

// CurrentPlaytime returns the elapsed playback in whole seconds.
func (s *Session) CurrentPlaytime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.playtime + s.outputRate/2) / s.outputRate
}

// ResetSampleRate changes the rate batches are resampled to, which changes the
// playback speed. The render cursor is discarded.
func (s *Session) ResetSampleRate(rate int) {
	s.mu.Lock()
	defer s.unlock()
	if rate <= 0 {
		return
	}
	s.resampler.Reset(rate, 0)
	s.cursor.Reset()
	s.trace("resample output rate set to %d Hz", rate)
}

func (s *Session) SongInfo() types.SongInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songInfo.Clone()
}

func (s *Session) SongInfoMeta() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.SongInfoMeta()
}

func (s *Session) MaxPlaybackPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.MaxPlaybackPosition()
}

func (s *Session) PlaybackPosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.PlaybackPosition()
}

// Seek moves the backend to pos (in backend specific units) and drops any
// resampled samples still pending from the old position.
func (s *Session) Seek(pos int) types.Status {
	s.mu.Lock()
	defer s.unlock()
	if s.closed || !s.songReady {
		return types.StatusError
	}
	status := s.backend.Seek(pos)
	if status == types.StatusOK {
		s.cursor.Reset()
	}
	return status
}

// MarkPreloaded records that all required resources have been fetched. The
// player_ready notification fires once the backend reports ready as well.
func (s *Session) MarkPreloaded() {
	s.mu.Lock()
	defer s.unlock()
	s.preloaded = true
	s.checkPlayerReady()
}

func (s *Session) checkPlayerReady() {
	if s.playerReady || !s.preloaded || s.closed || !s.backend.IsReady() {
		return
	}
	s.playerReady = true
	s.trace("player ready")
	s.emit(EventPlayerReady, nil)
}

func (s *Session) IsPlayerReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerReady
}

// Run drains session events until ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case ev := <-s.events:
			s.HandleEvent(ev)
		}
	}
}

// ProcessEvents handles every event queued so far without blocking and
// returns how many were handled.
func (s *Session) ProcessEvents() int {
	n := 0
	for {
		select {
		case ev := <-s.events:
			s.HandleEvent(ev)
			n++
		default:
			return n
		}
	}
}

// Events exposes the inbound queue, mainly so hosts can select on it.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) post(ev Event) {
	select {
	case s.events <- ev:
		return
	case <-s.done:
		return
	default:
	}
	go func() {
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.paused = true
	s.songReady = false
	s.attempt = nil
	s.loaded = nil
	close(s.done)
	s.backend.Teardown()
	s.trace("session closed")
	return nil
}
