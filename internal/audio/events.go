package audio

import "github.com/Alexander-D-Karpov/streamplayer/pkg/types"

// Notification types published by a Session.
const (
	EventPlayerReady     = "player_ready"
	EventTrackReady      = "track_ready"
	EventTrackEnd        = "track_end"
	EventSongInfoUpdated = "song_info_updated"
	EventLoadFailed      = "load_failed"
)

type EndReason int

const (
	EndOfTrack EndReason = iota
	EndError
	EndTimeout
)

func (r EndReason) String() string {
	switch r {
	case EndOfTrack:
		return "end"
	case EndError:
		return "error"
	case EndTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type TrackReady struct {
	Filename string
	Info     types.SongInfo
}

type TrackEnd struct {
	Filename string
	Reason   EndReason
	Status   types.Status
}

type LoadFailed struct {
	Filename string
	Status   types.Status
	Err      error
}

type SongInfoUpdated struct {
	Info types.SongInfo
}

// Event is an input to the session's event loop.
type Event interface {
	sessionEvent()
}

// ResourceArrived reports the completion of a resource fetch started on behalf of
// the attempt with the given generation. Err is non-nil when the fetch failed.
type ResourceArrived struct {
	Key        string
	Name       string
	Generation uint64
	Data       []byte
	Err        error
}

func (ResourceArrived) sessionEvent() {}

type adapterReady struct{}

func (adapterReady) sessionEvent() {}

type notification struct {
	eventType string
	data      interface{}
}
