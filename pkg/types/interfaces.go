package types

import "context"

// Host is the player side of the contract a backend talks to while it loads or plays.
// All methods are called from within backend operations invoked by the player.
type Host interface {
	// RequestResource returns the bytes of a named resource if they are cached.
	// ResourcePending means a fetch has been started and the current operation must
	// fail with StatusMissingResource; it will be replayed once the resource arrives.
	RequestResource(name string) ([]byte, ResourceStatus)
	// ResourceSize returns the size of an already loaded resource, or -1.
	ResourceSize(name string) int
	// SongUpdate lets the backend push song attributes learned during playback.
	SongUpdate(attrs map[string]string)
	// AdapterReady signals that an asynchronously initialized backend became usable.
	AdapterReady()
}

// SampleReader converts one sample of a batch to a float in [-1, 1].
type SampleReader interface {
	ReadSample(b SampleBatch, idx int) float32
}

// SampleCopier is implemented by backends that can convert a whole batch faster
// than sample-by-sample reads. dst receives b.Samples() values.
type SampleCopier interface {
	CopySamples(dst []float32, b SampleBatch) int
}

// Backend is the capability set of a sample producer. Channel count and sample
// width are fixed per instance.
type Backend interface {
	SampleReader

	Channels() int
	BytesPerSample() int
	// InputSampleRate is the native rate of the batches of the loaded track.
	InputSampleRate() int

	// ComputeNextBatch fills the backend buffer with the next batch.
	ComputeNextBatch() Status
	Batch() SampleBatch

	LoadTrackData(targetRate int, path, filename string, data []byte, opts TrackOptions) Status
	SelectTrackOptions(opts TrackOptions) Status

	UpdateSongInfo(filename string, info SongInfo)
	SongInfoMeta() map[string]string
	HandleSongAttributes(attrs map[string]string, info SongInfo)

	Teardown()
	IsReady() bool
	SetHost(h Host)

	PathAndFilename(filename string) (path, name string)
	RegisterFileData(path, name string, data []byte) bool
	MapBackendFilename(name string) string
	MapCacheFilename(name string) string
	MapInternalFilename(overridePath, defaultPath, uri string) string

	MaxPlaybackPosition() int
	PlaybackPosition() int
	Seek(pos int) Status
}

// Fetcher resolves resource keys into bytes.
type Fetcher interface {
	Request(key string, deliver func(data []byte, err error))
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Notifier receives player notifications.
type Notifier interface {
	Publish(eventType string, data interface{})
}
