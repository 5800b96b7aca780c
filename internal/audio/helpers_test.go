package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// f32Reader reads little-endian float32 samples.
type f32Reader struct{}

func (f32Reader) ReadSample(b types.SampleBatch, idx int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b.Data[idx*4:]))
}

type f32Copier struct {
	f32Reader
	calls int
}

func (c *f32Copier) CopySamples(dst []float32, b types.SampleBatch) int {
	c.calls++
	n := b.Samples()
	for i := range n {
		dst[i] = c.ReadSample(b, i)
	}
	return n
}

func encodeF32(dst []byte, values []float32) []byte {
	dst = dst[:0]
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func floatBatch(channels int, values []float32) types.SampleBatch {
	return types.SampleBatch{
		Data:           encodeF32(nil, values),
		Frames:         len(values) / channels,
		Channels:       channels,
		BytesPerSample: 4,
	}
}

// seqValue is exact in float32 for every index a test uses.
func seqValue(i int) float32 { return float32(i) / 65536 }

type loadCall struct {
	Path     string
	Filename string
	Data     []byte
	Options  types.TrackOptions
}

// scriptedBackend produces batches of the configured frame counts carrying an
// increasing sample sequence, then reports end of track.
type scriptedBackend struct {
	f32Reader

	channels int
	rate     int
	frames   []int
	endless  int

	script      []types.Status
	loadResults []types.Status
	// requires maps a track filename to resources requested while loading.
	requires    map[string][]string
	renderNeeds string
	// lenient keeps producing after a pending render-time request instead
	// of reporting StatusMissingResource.
	lenient bool

	pos     int
	counter int
	data    []byte
	batch   types.SampleBatch
	host    types.Host

	loadCalls   []loadCall
	selectCalls int
	teardowns   int
	registered  map[string][]byte
	ready       bool
	attrs       map[string]string
}

func newScriptedBackend(channels, rate int, frames ...int) *scriptedBackend {
	return &scriptedBackend{
		channels:   channels,
		rate:       rate,
		frames:     frames,
		requires:   map[string][]string{},
		registered: map[string][]byte{},
		ready:      true,
	}
}

func (f *scriptedBackend) Channels() int { return f.channels }
func (f *scriptedBackend) BytesPerSample() int { return 4 }
func (f *scriptedBackend) InputSampleRate() int { return f.rate }
func (f *scriptedBackend) Batch() types.SampleBatch {
	return f.batch
}

func (f *scriptedBackend) ComputeNextBatch() types.Status {
	if f.renderNeeds != "" {
		switch _, st := f.host.RequestResource(f.renderNeeds); st {
		case types.ResourcePending:
			if !f.lenient {
				return types.StatusMissingResource
			}
		case types.ResourceFailed:
			return types.StatusError
		}
	}
	if len(f.script) > 0 {
		st := f.script[0]
		f.script = f.script[1:]
		if st != types.StatusOK {
			return st
		}
	}

	n := f.endless
	if n == 0 {
		if f.pos >= len(f.frames) {
			return types.StatusEnd
		}
		n = f.frames[f.pos]
		f.pos++
	}

	values := make([]float32, n*f.channels)
	for i := range values {
		values[i] = seqValue(f.counter)
		f.counter++
	}
	f.data = encodeF32(f.data, values)
	f.batch = types.SampleBatch{Data: f.data, Frames: n, Channels: f.channels, BytesPerSample: 4}
	return types.StatusOK
}

func (f *scriptedBackend) LoadTrackData(_ int, path, filename string, data []byte, opts types.TrackOptions) types.Status {
	f.loadCalls = append(f.loadCalls, loadCall{Path: path, Filename: filename, Data: data, Options: opts})
	for _, name := range f.requires[filename] {
		switch _, st := f.host.RequestResource(name); st {
		case types.ResourcePending:
			return types.StatusMissingResource
		case types.ResourceFailed:
			return types.StatusError
		}
	}
	if len(f.loadResults) > 0 {
		st := f.loadResults[0]
		f.loadResults = f.loadResults[1:]
		if st != types.StatusOK {
			return st
		}
	}
	f.pos = 0
	f.counter = 0
	return types.StatusOK
}

func (f *scriptedBackend) SelectTrackOptions(types.TrackOptions) types.Status {
	f.selectCalls++
	if f.attrs != nil {
		f.host.SongUpdate(f.attrs)
	}
	return types.StatusOK
}

func (f *scriptedBackend) UpdateSongInfo(filename string, info types.SongInfo) {
	info["title"] = filename
}

func (f *scriptedBackend) SongInfoMeta() map[string]string {
	return map[string]string{"title": "String"}
}

func (f *scriptedBackend) HandleSongAttributes(attrs map[string]string, info types.SongInfo) {
	for k, v := range attrs {
		info[k] = v
	}
}

func (f *scriptedBackend) Teardown() { f.teardowns++ }
func (f *scriptedBackend) IsReady() bool { return f.ready }
func (f *scriptedBackend) SetHost(h types.Host) { f.host = h }

func (f *scriptedBackend) PathAndFilename(filename string) (string, string) { return "", filename }

func (f *scriptedBackend) RegisterFileData(_, name string, data []byte) bool {
	f.registered[name] = data
	return true
}

func (f *scriptedBackend) MapBackendFilename(name string) string { return name }
func (f *scriptedBackend) MapCacheFilename(name string) string { return name }
func (f *scriptedBackend) MapInternalFilename(overridePath, defaultPath, uri string) string {
	if overridePath != "" {
		return overridePath + uri
	}
	return defaultPath + uri
}

func (f *scriptedBackend) MaxPlaybackPosition() int { return 0 }
func (f *scriptedBackend) PlaybackPosition() int { return f.pos }
func (f *scriptedBackend) Seek(pos int) types.Status {
	if pos < 0 || pos > len(f.frames) {
		return types.StatusError
	}
	f.pos = pos
	return types.StatusOK
}

// manualFetcher records requests; tests resolve them explicitly.
type manualFetcher struct {
	mu       sync.Mutex
	keys     []string
	delivers []func([]byte, error)
}

func (m *manualFetcher) Request(key string, deliver func([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	m.delivers = append(m.delivers, deliver)
}

func (m *manualFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (m *manualFetcher) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

func (m *manualFetcher) resolve(i int, data []byte, err error) {
	m.mu.Lock()
	deliver := m.delivers[i]
	m.mu.Unlock()
	deliver(data, err)
}

type published struct {
	Type string
	Data interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []published
	hook   func(eventType string)
}

func (r *recorder) Publish(eventType string, data interface{}) {
	r.mu.Lock()
	r.events = append(r.events, published{Type: eventType, Data: data})
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(eventType)
	}
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) last(eventType string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i].Data, true
		}
	}
	return nil, false
}

func makeChunk(channels, size int) [][]float32 {
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, size)
	}
	return out
}

func fillNaN(out [][]float32) {
	nan := float32(math.NaN())
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = nan
		}
	}
}
