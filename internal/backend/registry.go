package backend

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Alexander-D-Karpov/streamplayer/internal/formats"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	_ types.Backend      = (*PCM)(nil)
	_ types.SampleCopier = (*PCM)(nil)
	_ types.Backend      = (*Patch)(nil)
)

var ErrUnsupportedFile = errors.New("no backend for file")

type Factory func() types.Backend

// Registry picks a backend by file extension.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default registers the PCM backend for wav, mp3 and ogg files and the mono
// patch backend for .patch and .yaml manifests.
func Default(debug bool) *Registry {
	decoders := formats.Default()
	r := NewRegistry()

	pcm := func() types.Backend {
		b := NewPCM(decoders)
		b.SetDebug(debug)
		return b
	}
	for _, ext := range []string{"wav", "wave", "mp3", "ogg", "oga"} {
		r.Register(ext, pcm)
	}

	patch := func() types.Backend {
		b := NewPatch(decoders, 1)
		b.SetDebug(debug)
		return b
	}
	r.Register("patch", patch)
	r.Register("yaml", patch)
	r.Register("yml", patch)
	return r
}

func (r *Registry) Register(ext string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(ext)] = f
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.factories))
	for ext := range r.factories {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// New creates a backend for filename. Query strings of URLs are ignored.
func (r *Registry) New(filename string) (types.Backend, error) {
	name := filename
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))

	r.mu.RLock()
	f, ok := r.factories[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
	return f(), nil
}
