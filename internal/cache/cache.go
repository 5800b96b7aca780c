package cache

import (
	"errors"
	"sort"
	"sync"
)

// ErrResourceUnavailable is reported for keys whose fetch failed earlier in the session.
var ErrResourceUnavailable = errors.New("resource permanently unavailable")

// Lookup is the state of a key in the cache.
type Lookup int

const (
	Absent Lookup = iota
	Available
	Failed
)

func (l Lookup) String() string {
	switch l {
	case Absent:
		return "Absent"
	case Available:
		return "Available"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ResourceCache maps resource keys to bytes or to a failure marker and tracks
// which keys have a fetch in flight.
//
// A key moves from absent to pending to resolved (bytes or failed). Once resolved
// it never goes back to pending unless it is evicted explicitly.
type ResourceCache struct {
	files   map[string][]byte
	failed  map[string]struct{}
	pending map[string]struct{}
	size    int64

	mu sync.Mutex
}

func New() *ResourceCache {
	return &ResourceCache{
		files:   make(map[string][]byte),
		failed:  make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Get returns the cached bytes and the lookup state for key.
func (c *ResourceCache) Get(key string) ([]byte, Lookup) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getLocked(key)
}

func (c *ResourceCache) getLocked(key string) ([]byte, Lookup) {
	if data, ok := c.files[key]; ok {
		return data, Available
	}
	if _, ok := c.failed[key]; ok {
		return nil, Failed
	}
	return nil, Absent
}

// Put stores data for key. Overwriting an existing entry refreshes it.
func (c *ResourceCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.files[key]; ok {
		c.size -= int64(len(old))
	}
	delete(c.failed, key)
	c.files[key] = data
	c.size += int64(len(data))
}

// PutFailed records that key could not be fetched for the rest of the session.
func (c *ResourceCache) PutFailed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.files[key]; ok {
		c.size -= int64(len(old))
		delete(c.files, key)
	}
	c.failed[key] = struct{}{}
}

// MarkPending flags key as being fetched. It returns false when a fetch for key is
// already in flight, in which case the caller must not start another one.
func (c *ResourceCache) MarkPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[key]; ok {
		return false
	}
	c.pending[key] = struct{}{}
	return true
}

func (c *ResourceCache) IsPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.pending[key]
	return ok
}

func (c *ResourceCache) ClearPending(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, key)
}

// Resolve stores the outcome of a fetch and clears the pending flag in one step.
// A nil error stores data, anything else stores the failure marker.
func (c *ResourceCache) Resolve(key string, data []byte, err error) Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, key)
	if old, ok := c.files[key]; ok {
		c.size -= int64(len(old))
		delete(c.files, key)
	}
	if err != nil {
		c.failed[key] = struct{}{}
		return Failed
	}
	delete(c.failed, key)
	c.files[key] = data
	c.size += int64(len(data))
	return Available
}

// Evict forgets key so that the next request fetches it again.
// Pending fetches are not affected.
func (c *ResourceCache) Evict(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, isFailed := c.failed[key]
	data, isFile := c.files[key]
	if isFile {
		c.size -= int64(len(data))
	}
	delete(c.files, key)
	delete(c.failed, key)
	return isFile || isFailed
}

// Keys returns the resolved keys in sorted order.
func (c *ResourceCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.files)+len(c.failed))
	for k := range c.files {
		keys = append(keys, k)
	}
	for k := range c.failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *ResourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files) + len(c.failed)
}

// Size returns the number of cached bytes.
func (c *ResourceCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
