package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/internal/backend"
	"github.com/Alexander-D-Karpov/streamplayer/internal/cache"
	"github.com/Alexander-D-Karpov/streamplayer/internal/config"
	"github.com/Alexander-D-Karpov/streamplayer/internal/fetch"
	"github.com/Alexander-D-Karpov/streamplayer/internal/handlers"
	"github.com/Alexander-D-Karpov/streamplayer/internal/search"
	"github.com/Alexander-D-Karpov/streamplayer/internal/storage"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var ErrNoStore = errors.New("no resource store configured")

// PlayerService owns the resource pipeline shared by every track (cache,
// fetch orchestrator, persistent store) and the session currently playing.
// Each load gets a fresh backend and session; outputs render through the
// service so they keep working across tracks.
type PlayerService struct {
	cfg          *config.Config
	cache        *cache.ResourceCache
	local        *fetch.DirTransport
	orchestrator *fetch.Orchestrator
	store        *storage.Database
	search       *search.Engine
	backends     *backend.Registry
	bus          *handlers.EventBus
	debug        bool

	mu        sync.Mutex
	session   *audio.Session
	stopRun   context.CancelFunc
	preloaded bool
}

// NewPlayerService fetches from the configured resource directories first and
// then over HTTP. With storage.persist_resources the HTTP results are kept in
// store across runs.
func NewPlayerService(cfg *config.Config, store *storage.Database, bus *handlers.EventBus) *PlayerService {
	var remote fetch.Transport = fetch.NewHTTPTransportFromConfig(cfg)
	if store != nil && cfg.Storage.PersistResources {
		remote = fetch.NewStoreTransport(store, remote, cfg.Debug)
	}
	return NewPlayerServiceWithRemote(cfg, remote, store, bus)
}

// NewPlayerServiceWithRemote uses remote in place of the HTTP transport.
func NewPlayerServiceWithRemote(cfg *config.Config, remote fetch.Transport, store *storage.Database, bus *handlers.EventBus) *PlayerService {
	local := fetch.NewDirTransport(cfg.Fetch.ResourceDirs, cfg.Debug)
	c := cache.New()

	p := &PlayerService{
		cfg:          cfg,
		cache:        c,
		local:        local,
		orchestrator: fetch.NewOrchestrator(c, fetch.Chain{local, remote}, cfg.Fetch.MaxConcurrent, cfg.Debug),
		store:        store,
		backends:     backend.Default(cfg.Debug),
		bus:          bus,
		debug:        cfg.Debug,
	}
	if store != nil {
		p.search = search.NewEngine(store)
	}
	p.orchestrator.OnCompletion(func(progress types.FetchProgress) {
		if progress.Status == types.FetchStatusFailed {
			log.Printf("[PLAYER_SERVICE] Failed to fetch %s: %v", progress.Key, progress.Error)
		} else {
			p.debugLog("Fetched %s (%d bytes) in %v", progress.Key, progress.Size, progress.Duration)
		}
	})
	return p
}

func (p *PlayerService) debugLog(format string, args ...interface{}) {
	if p.debug {
		log.Printf("[PLAYER_SERVICE] "+format, args...)
	}
}

func (p *PlayerService) Cache() *cache.ResourceCache { return p.cache }

func (p *PlayerService) Orchestrator() *fetch.Orchestrator { return p.orchestrator }

func (p *PlayerService) Backends() *backend.Registry { return p.backends }

// Session returns the current session or nil before the first load.
func (p *PlayerService) Session() *audio.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// SwapBackend starts a new session around b that shares the resource cache,
// and closes the previous one.
func (p *PlayerService) SwapBackend(b types.Backend) (*audio.Session, error) {
	s, stop, err := p.startSession(b)
	if err != nil {
		return nil, err
	}
	p.install(s, stop)
	return s, nil
}

func (p *PlayerService) startSession(b types.Backend) (*audio.Session, context.CancelFunc, error) {
	opts := audio.Options{
		OutputRate:        p.cfg.Audio.SampleRate,
		ChunkSize:         p.cfg.Audio.ChunkSize,
		PlaybackTimeoutMs: p.cfg.Audio.PlaybackTimeoutMs,
		Cache:             p.cache,
		Fetcher:           p.orchestrator,
		Debug:             p.debug,
	}
	if p.bus != nil {
		opts.Notifier = p.bus
	}

	s, err := audio.NewSession(b, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[PLAYER_SERVICE] Session loop stopped: %v", err)
		}
	}()
	return s, cancel, nil
}

// install makes s the current session and closes the one it replaces.
func (p *PlayerService) install(s *audio.Session, stop context.CancelFunc) {
	p.mu.Lock()
	old, oldStop := p.session, p.stopRun
	p.session, p.stopRun = s, stop
	preloaded := p.preloaded
	p.mu.Unlock()

	if old != nil {
		oldStop()
		_ = old.Close()
	}
	if preloaded {
		s.MarkPreloaded()
	}
}

// loadInto loads the track on a session that is not rendered yet, so the
// previous track keeps playing while the new one decodes. A failed load
// leaves the previous session in place.
func (p *PlayerService) loadInto(b types.Backend, name string, data []byte, opts types.TrackOptions) error {
	s, stop, err := p.startSession(b)
	if err != nil {
		return err
	}

	if err := s.LoadTrack(name, data, opts); err != nil {
		stop()
		_ = s.Close()
		return err
	}
	p.install(s, stop)
	return nil
}

// Load plays data as track name on a backend chosen by the name's extension.
func (p *PlayerService) Load(name string, data []byte, opts types.TrackOptions) error {
	b, err := p.backends.New(name)
	if err != nil {
		return err
	}

	p.debugLog("Loading %s (%d bytes)", name, len(data))
	return p.loadInto(b, name, data, opts)
}

// LoadFromURL fetches a track through the orchestrator, so a cached or
// persisted copy is used when there is one.
func (p *PlayerService) LoadFromURL(ctx context.Context, url string, opts types.TrackOptions) error {
	b, err := p.backends.New(url)
	if err != nil {
		return err
	}
	name := b.MapInternalFilename(opts.BasePath, "", url)

	startTime := time.Now()
	data, err := p.orchestrator.Fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	p.debugLog("Fetched track %s in %v", name, time.Since(startTime))

	return p.loadInto(b, name, data, opts)
}

// LoadFromFile plays a local file. Resources the track refers to are looked
// up next to it.
func (p *PlayerService) LoadFromFile(path string, opts types.TrackOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read track: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	p.local.AddDir(filepath.Dir(abs))

	return p.Load(filepath.Base(abs), data, opts)
}

// Preload fetches keys concurrently. Once all of them are cached the current
// and future sessions report player_ready as soon as their backend is ready.
func (p *PlayerService) Preload(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Fetch.MaxConcurrent > 0 {
		g.SetLimit(p.cfg.Fetch.MaxConcurrent)
	}

	for _, key := range keys {
		g.Go(func() error {
			if _, err := p.orchestrator.Fetch(ctx, key); err != nil {
				return fmt.Errorf("preload %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	p.preloaded = true
	s := p.session
	p.mu.Unlock()

	p.debugLog("Preloaded %d resources", len(keys))
	if s != nil {
		s.MarkPreloaded()
	}
	return nil
}

// Render fills out from the current session, or with silence when there is none.
func (p *PlayerService) Render(out [][]float32) {
	s := p.Session()
	if s == nil {
		for _, ch := range out {
			clear(ch)
		}
		return
	}
	s.Render(out)
}

// Search looks through persisted resources.
func (p *PlayerService) Search(ctx context.Context, query string, limit int) ([]types.ResourceInfo, error) {
	if p.search == nil {
		return nil, ErrNoStore
	}
	return p.search.Search(ctx, query, limit)
}

// Evict forgets key in memory and in the store, so the next request fetches
// it again.
func (p *PlayerService) Evict(ctx context.Context, key string) (bool, error) {
	evicted := p.orchestrator.Evict(key)
	if p.store == nil {
		return evicted, nil
	}
	deleted, err := p.store.DeleteResource(ctx, key)
	if err != nil {
		return evicted, fmt.Errorf("delete %s from store: %w", key, err)
	}
	return evicted || deleted, nil
}

func (p *PlayerService) Pause() error {
	s := p.Session()
	if s == nil {
		return audio.ErrNoTrack
	}
	s.Pause()
	return nil
}

func (p *PlayerService) Resume() error {
	s := p.Session()
	if s == nil {
		return audio.ErrNoTrack
	}
	s.Resume()
	return nil
}

func (p *PlayerService) Close() error {
	p.mu.Lock()
	s, stop := p.session, p.stopRun
	p.session, p.stopRun = nil, nil
	p.mu.Unlock()

	if s != nil {
		stop()
		_ = s.Close()
	}
	return p.orchestrator.Close()
}
