package backend

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

func encodeWAV(t *testing.T, rate, channels int, data []int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	return out
}

func constant(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// fakeHost answers resource requests from a map; unknown names are pending.
type fakeHost struct {
	resources map[string][]byte
	failed    map[string]bool
	requested []string
	updates   []map[string]string
}

func newFakeHost() *fakeHost {
	return &fakeHost{resources: map[string][]byte{}, failed: map[string]bool{}}
}

func (h *fakeHost) RequestResource(name string) ([]byte, types.ResourceStatus) {
	h.requested = append(h.requested, name)
	if data, ok := h.resources[name]; ok {
		return data, types.ResourceAvailable
	}
	if h.failed[name] {
		return nil, types.ResourceFailed
	}
	return nil, types.ResourcePending
}

func (h *fakeHost) ResourceSize(name string) int {
	if data, ok := h.resources[name]; ok {
		return len(data)
	}
	return -1
}

func (h *fakeHost) SongUpdate(attrs map[string]string) { h.updates = append(h.updates, attrs) }

func (h *fakeHost) AdapterReady() {}

type recorder struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string]interface{}
}

func newRecorder() *recorder {
	return &recorder{counts: map[string]int{}, last: map[string]interface{}{}}
}

func (r *recorder) Publish(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[eventType]++
	r.last[eventType] = data
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[eventType]
}

func (r *recorder) lastOf(eventType string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[eventType]
}
