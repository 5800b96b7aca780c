// Package backend holds the sample producers a Session can play.
package backend

import (
	"encoding/binary"
	"log"
	"math"
	"path"
	"strings"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// BatchFrames caps the number of frames a backend emits per ComputeNextBatch.
const BatchFrames = 8192

// Base supplies the defaults every backend shares: a registered-file table,
// identity filename mappings, width-based sample decoding and no seeking.
type Base struct {
	host  types.Host
	files map[string][]byte
	debug bool
}

func (b *Base) SetHost(h types.Host) { b.host = h }

func (b *Base) Host() types.Host { return b.host }

func (b *Base) SetDebug(debug bool) { b.debug = debug }

func (b *Base) debugLog(format string, args ...interface{}) {
	if b.debug {
		log.Printf("[BACKEND] "+format, args...)
	}
}

// ReadSample decodes 8-bit signed, 16-bit little-endian or 32-bit float samples.
func (b *Base) ReadSample(batch types.SampleBatch, idx int) float32 {
	switch batch.BytesPerSample {
	case 1:
		return float32(int8(batch.Data[idx])) / 128
	case 2:
		return float32(int16(binary.LittleEndian.Uint16(batch.Data[idx*2:]))) / 32768
	case 4:
		return math.Float32frombits(binary.LittleEndian.Uint32(batch.Data[idx*4:]))
	default:
		return 0
	}
}

func (b *Base) IsReady() bool { return true }

func (b *Base) Teardown() {}

// PathAndFilename splits at the last slash; the path keeps its trailing slash.
func (b *Base) PathAndFilename(filename string) (string, string) {
	dir, name := path.Split(filename)
	return dir, name
}

func (b *Base) RegisterFileData(dir, name string, data []byte) bool {
	if b.files == nil {
		b.files = make(map[string][]byte)
	}
	b.files[dir+name] = data
	b.debugLog("registered %s%s (%d bytes)", dir, name, len(data))
	return true
}

// FileData returns data previously passed to RegisterFileData.
func (b *Base) FileData(dir, name string) ([]byte, bool) {
	data, ok := b.files[dir+name]
	return data, ok
}

func (b *Base) MapBackendFilename(name string) string { return name }

func (b *Base) MapCacheFilename(name string) string { return name }

// MapInternalFilename prefixes uri with overridePath, or defaultPath when no
// override is given. Absolute URLs are left alone.
func (b *Base) MapInternalFilename(overridePath, defaultPath, uri string) string {
	if strings.Contains(uri, "://") {
		return uri
	}
	if overridePath != "" {
		return overridePath + uri
	}
	return defaultPath + uri
}

func (b *Base) SongInfoMeta() map[string]string { return map[string]string{} }

func (b *Base) HandleSongAttributes(attrs map[string]string, info types.SongInfo) {
	for k, v := range attrs {
		info[k] = v
	}
}

func (b *Base) MaxPlaybackPosition() int { return 0 }

func (b *Base) PlaybackPosition() int { return 0 }

func (b *Base) Seek(int) types.Status { return types.StatusError }

// request asks the host for a resource, translating the answer into a Status.
func (b *Base) request(name string) ([]byte, types.Status) {
	if b.host == nil {
		return nil, types.StatusError
	}
	data, rs := b.host.RequestResource(name)
	switch rs {
	case types.ResourceAvailable:
		return data, types.StatusOK
	case types.ResourcePending:
		b.debugLog("waiting for %s", name)
		return nil, types.StatusMissingResource
	default:
		b.debugLog("resource %s failed", name)
		return nil, types.StatusError
	}
}
