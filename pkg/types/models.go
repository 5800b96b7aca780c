package types

import "time"

// Status is the result code shared by every backend operation.
type Status int

const (
	StatusOK              Status = 0
	StatusMissingResource Status = -1
	StatusEnd             Status = 1
	StatusError           Status = 2
)

func (s Status) String() string {
	switch {
	case s == StatusOK:
		return "OK"
	case s < 0:
		return "MissingResource"
	case s == StatusEnd:
		return "End"
	default:
		return "Error"
	}
}

// IsError reports whether s is an unrecoverable backend status (2 and above).
func (s Status) IsError() bool { return s > StatusEnd }

// SampleBatch is one block of native-rate samples produced by a backend.
// Data is owned by the backend and only valid until its next ComputeNextBatch call.
type SampleBatch struct {
	Data           []byte
	Frames         int
	Channels       int
	BytesPerSample int
}

// Samples returns the number of interleaved sample values in the batch.
func (b SampleBatch) Samples() int { return b.Frames * b.Channels }

type TrackOptions struct {
	Track    int               `json:"track" yaml:"track"`
	BasePath string            `json:"base_path" yaml:"base_path"`
	Timeout  int               `json:"timeout" yaml:"timeout"`
	Extra    map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// SongInfo holds backend specific attributes of the current track (title, author, ...).
type SongInfo map[string]string

// Clone returns an independent copy of the info map.
func (s SongInfo) Clone() SongInfo {
	out := make(SongInfo, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ResourceStatus is what a backend gets back when it asks the host for a resource.
type ResourceStatus int

const (
	ResourceAvailable ResourceStatus = 0
	ResourcePending   ResourceStatus = -1
	ResourceFailed    ResourceStatus = 1
)

func (s ResourceStatus) String() string {
	switch s {
	case ResourceAvailable:
		return "Available"
	case ResourcePending:
		return "Pending"
	case ResourceFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ResourceInfo describes a persisted resource.
type ResourceInfo struct {
	Key       string    `json:"key" db:"key"`
	Size      int64     `json:"size" db:"size"`
	FetchedAt time.Time `json:"fetched_at" db:"fetched_at"`
}

// FetchProgress is a snapshot of one resource fetch.
type FetchProgress struct {
	Key         string        `json:"key"`
	Status      FetchStatus   `json:"status"`
	Size        int64         `json:"size"`
	Waiters     int           `json:"waiters"`
	Error       error         `json:"error,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

type FetchStatus int

const (
	FetchStatusPending FetchStatus = iota
	FetchStatusDownloading
	FetchStatusCompleted
	FetchStatusFailed
)

func (s FetchStatus) String() string {
	switch s {
	case FetchStatusPending:
		return "Pending"
	case FetchStatusDownloading:
		return "Downloading"
	case FetchStatusCompleted:
		return "Completed"
	case FetchStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
