package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	// ErrNotFound is returned by transports that do not have a resource.
	ErrNotFound = errors.New("resource not found")
	ErrClosed   = errors.New("fetch orchestrator is closed")
)

// Transport retrieves the bytes of one resource.
type Transport interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type TransportFunc func(ctx context.Context, key string) ([]byte, error)

func (f TransportFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// Deliver receives the outcome of a request. It is never called on the
// requesting goroutine.
type Deliver func(data []byte, err error)

// CompletionCallback is called once per finished transport fetch.
type CompletionCallback func(types.FetchProgress)

// Task is the bookkeeping for one transport fetch.
type Task struct {
	Key         string
	State       types.FetchStatus
	Size        int64
	Waiters     int
	Error       error
	StartTime   time.Time
	CompletedAt *time.Time

	mutex sync.RWMutex
}

func newTask(key string) *Task {
	return &Task{
		Key:       key,
		State:     types.FetchStatusPending,
		Waiters:   1,
		StartTime: time.Now(),
	}
}

func (t *Task) setState(state types.FetchStatus) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.State = state
}

func (t *Task) addWaiter() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.Waiters++
}

func (t *Task) finish(size int64, err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	t.CompletedAt = &now
	t.Size = size
	t.Error = err
	if err != nil {
		t.State = types.FetchStatusFailed
	} else {
		t.State = types.FetchStatusCompleted
	}
}

func (t *Task) progress() types.FetchProgress {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	p := types.FetchProgress{
		Key:       t.Key,
		Status:    t.State,
		Size:      t.Size,
		Waiters:   t.Waiters,
		Error:     t.Error,
		StartTime: t.StartTime,
	}
	if t.CompletedAt != nil {
		p.CompletedAt = *t.CompletedAt
		p.Duration = t.CompletedAt.Sub(t.StartTime)
	}
	return p
}
