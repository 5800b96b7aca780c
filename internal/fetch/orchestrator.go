package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Alexander-D-Karpov/streamplayer/internal/cache"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// Orchestrator resolves resource keys through a Transport while keeping at
// most one transport fetch in flight per key. Every caller that asks for a key
// while it is pending is delivered the same result when the fetch completes.
type Orchestrator struct {
	cache     *cache.ResourceCache
	transport Transport
	semaphore chan struct{}
	waiters   map[string][]Deliver
	tasks     sync.Map
	fetches   atomic.Int64

	completionCbs []CompletionCallback
	callbackMutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	debug  bool

	mu sync.Mutex
}

func NewOrchestrator(c *cache.ResourceCache, transport Transport, maxConcurrent int, debug bool) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		cache:     c,
		transport: transport,
		semaphore: make(chan struct{}, maxConcurrent),
		waiters:   make(map[string][]Deliver),
		ctx:       ctx,
		cancel:    cancel,
		debug:     debug,
	}
	o.debugLog("Fetch orchestrator initialized - max concurrent: %d", maxConcurrent)
	return o
}

func (o *Orchestrator) Cache() *cache.ResourceCache { return o.cache }

// Request asks for key and calls deliver exactly once with the outcome.
func (o *Orchestrator) Request(key string, deliver func(data []byte, err error)) {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()
		go deliver(nil, ErrClosed)
		return
	}

	data, lookup := o.cache.Get(key)
	switch lookup {
	case cache.Available:
		o.mu.Unlock()
		go deliver(data, nil)
		return
	case cache.Failed:
		o.mu.Unlock()
		go deliver(nil, fmt.Errorf("%w: %s", cache.ErrResourceUnavailable, key))
		return
	}

	o.waiters[key] = append(o.waiters[key], deliver)
	start := o.cache.MarkPending(key)
	if start {
		task := newTask(key)
		o.tasks.Store(key, task)
		o.wg.Add(1)
		o.mu.Unlock()

		o.debugLog("Starting fetch: %s", key)
		go o.execute(key, task)
		return
	}
	o.mu.Unlock()

	if existing, ok := o.tasks.Load(key); ok {
		existing.(*Task).addWaiter()
	}
	o.debugLog("Fetch already in progress, waiting: %s", key)
}

// Fetch is the blocking form of Request.
func (o *Orchestrator) Fetch(ctx context.Context, key string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	o.Request(key, func(data []byte, err error) {
		ch <- result{data: data, err: err}
	})

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) execute(key string, task *Task) {
	defer o.wg.Done()

	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-o.ctx.Done():
		o.complete(key, task, nil, o.ctx.Err())
		return
	}

	task.setState(types.FetchStatusDownloading)
	o.fetches.Add(1)

	data, err := o.transport.Fetch(o.ctx, key)
	o.complete(key, task, data, err)
}

func (o *Orchestrator) complete(key string, task *Task, data []byte, err error) {
	// a fetch cut short by Close says nothing about the resource
	aborted := err != nil && errors.Is(err, context.Canceled) && o.ctx.Err() != nil

	o.mu.Lock()
	if aborted {
		o.cache.ClearPending(key)
	} else {
		o.cache.Resolve(key, data, err)
	}
	waiters := o.waiters[key]
	delete(o.waiters, key)
	o.mu.Unlock()

	task.finish(int64(len(data)), err)

	switch {
	case aborted:
		o.debugLog("Fetch aborted: %s", key)
		err = fmt.Errorf("%w: %s: %w", ErrClosed, key, err)
		data = nil
	case err != nil:
		o.debugLog("Fetch failed: %s - %v", key, err)
		err = fmt.Errorf("%w: %s: %w", cache.ErrResourceUnavailable, key, err)
		data = nil
	default:
		o.debugLog("Fetch completed: %s (%d bytes, %d waiters)", key, len(data), len(waiters))
	}

	o.notifyCompletion(task)
	for _, deliver := range waiters {
		deliver(data, err)
	}
}

func (o *Orchestrator) OnCompletion(callback CompletionCallback) {
	o.callbackMutex.Lock()
	defer o.callbackMutex.Unlock()
	o.completionCbs = append(o.completionCbs, callback)
}

func (o *Orchestrator) notifyCompletion(task *Task) {
	o.callbackMutex.RLock()
	callbacks := make([]CompletionCallback, len(o.completionCbs))
	copy(callbacks, o.completionCbs)
	o.callbackMutex.RUnlock()

	p := task.progress()
	for _, cb := range callbacks {
		cb(p)
	}
}

// Evict forgets a resolved key so that the next request goes to the transport again.
func (o *Orchestrator) Evict(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tasks.Delete(key)
	return o.cache.Evict(key)
}

// Fetches returns how many transport fetches have been started.
func (o *Orchestrator) Fetches() int64 { return o.fetches.Load() }

// Tasks returns a snapshot of every known fetch, ordered by key.
func (o *Orchestrator) Tasks() []types.FetchProgress {
	var out []types.FetchProgress
	o.tasks.Range(func(_, value interface{}) bool {
		out = append(out, value.(*Task).progress())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (o *Orchestrator) GetProgress(key string) (types.FetchProgress, bool) {
	value, ok := o.tasks.Load(key)
	if !ok {
		return types.FetchProgress{}, false
	}
	return value.(*Task).progress(), true
}

// ClearCompleted drops finished tasks from the task table. Cached results stay.
func (o *Orchestrator) ClearCompleted() int {
	var toDelete []string
	o.tasks.Range(func(key, value interface{}) bool {
		switch value.(*Task).progress().Status {
		case types.FetchStatusCompleted, types.FetchStatusFailed:
			toDelete = append(toDelete, key.(string))
		}
		return true
	})

	for _, key := range toDelete {
		o.tasks.Delete(key)
	}
	o.debugLog("Cleared %d finished fetches", len(toDelete))
	return len(toDelete)
}

// Close cancels in-flight fetches and waits for them to deliver.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) debugLog(format string, args ...interface{}) {
	if o.debug {
		log.Printf("[FETCH] "+format, args...)
	}
}
