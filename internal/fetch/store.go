package fetch

import (
	"context"
	"log"
)

// ResourceStore is the persistent side of StoreTransport.
type ResourceStore interface {
	LoadResource(ctx context.Context, key string) ([]byte, error)
	SaveResource(ctx context.Context, key string, data []byte) error
}

// StoreTransport serves resources from a persistent store and writes whatever
// the next transport fetches back into it. Failures are never stored.
type StoreTransport struct {
	store ResourceStore
	next  Transport
	debug bool
}

func NewStoreTransport(store ResourceStore, next Transport, debug bool) *StoreTransport {
	return &StoreTransport{store: store, next: next, debug: debug}
}

func (s *StoreTransport) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := s.store.LoadResource(ctx, key)
	if err == nil {
		s.debugLog("Loaded %s from store", key)
		return data, nil
	}
	s.debugLog("Store miss for %s: %v", key, err)

	data, err = s.next.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if saveErr := s.store.SaveResource(ctx, key, data); saveErr != nil {
		log.Printf("[STORE] Failed to persist %s: %v", key, saveErr)
	}
	return data, nil
}

func (s *StoreTransport) debugLog(format string, args ...interface{}) {
	if s.debug {
		log.Printf("[STORE] "+format, args...)
	}
}
