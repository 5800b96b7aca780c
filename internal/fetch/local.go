package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/Alexander-D-Karpov/streamplayer/internal/search"
)

// DirTransport reads resources from local directories. When no file matches
// the key exactly, a file whose name differs only in case or accents is used
// instead. Anything else is a miss, so a Chain falls through to the next
// transport.
type DirTransport struct {
	mu    sync.RWMutex
	dirs  []string
	debug bool
}

func NewDirTransport(dirs []string, debug bool) *DirTransport {
	return &DirTransport{dirs: dirs, debug: debug}
}

// AddDir appends dir to the search list unless it is already there.
func (d *DirTransport) AddDir(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.Contains(d.dirs, dir) {
		return
	}
	d.dirs = append(d.dirs, dir)
	if d.debug {
		log.Printf("[FETCH] Searching %s for resources", dir)
	}
}

func (d *DirTransport) Dirs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.dirs)
}

func (d *DirTransport) Fetch(ctx context.Context, key string) ([]byte, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s is not a relative path", ErrNotFound, key)
	}

	for _, dir := range d.Dirs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, rel)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		if match, ok := d.closest(filepath.Dir(path), filepath.Base(path)); ok {
			if d.debug {
				log.Printf("[FETCH] Using %s for %s", match, key)
			}
			data, err := os.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", match, err)
			}
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

func (d *DirTransport) closest(dir, name string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	match, ok := search.FoldedMatch(name, names)
	if !ok {
		return "", false
	}
	return filepath.Join(dir, match), true
}

// Chain tries each transport in order and returns the first success.
type Chain []Transport

func (c Chain) Fetch(ctx context.Context, key string) ([]byte, error) {
	var errs []error
	for _, t := range c {
		data, err := t.Fetch(ctx, key)
		if err == nil {
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil, errors.Join(errs...)
}
