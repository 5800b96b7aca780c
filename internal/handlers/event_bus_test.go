package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

func TestPublishIsSynchronousAndOrdered(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	var got []string
	bus.Subscribe("a", func(data interface{}) { got = append(got, "first:"+data.(string)) })
	bus.Subscribe("a", func(data interface{}) { got = append(got, "second:"+data.(string)) })
	bus.Subscribe(AllEvents, func(data interface{}) {
		ev := data.(Event)
		got = append(got, "all:"+ev.Type)
	})

	bus.Publish("a", "x")
	bus.Publish("b", "y")
	assert.Equal(t, []string{"first:x", "second:x", "all:a", "all:b"}, got)

	bus.Unsubscribe("a")
	bus.Publish("a", "z")
	assert.Equal(t, "all:a", got[len(got)-1])
	assert.Len(t, got, 5)
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	calls := 0
	bus.Subscribe("a", func(interface{}) {
		calls++
		bus.Subscribe("a", func(interface{}) { calls++ })
	})

	bus.Publish("a", nil)
	assert.Equal(t, 1, calls)
}

func TestPlaybackHandlers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	h := NewPlaybackHandlers(bus, false)

	var ready []string
	h.OnTrackReady(func(ev audio.TrackReady) { ready = append(ready, ev.Filename) })
	var info types.SongInfo
	h.OnSongInfo(func(ev audio.SongInfoUpdated) { info = ev.Info })

	bus.Publish(audio.EventTrackReady, audio.TrackReady{Filename: "a.wav"})
	bus.Publish(audio.EventSongInfoUpdated, audio.SongInfoUpdated{Info: types.SongInfo{"title": "A"}})
	assert.Equal(t, []string{"a.wav"}, ready)
	assert.Equal(t, "A", info["title"])

	select {
	case <-h.Done():
		t.Fatal("done before track end")
	default:
	}

	bus.Publish(audio.EventTrackEnd, audio.TrackEnd{Filename: "a.wav", Reason: audio.EndTimeout})
	bus.Publish(audio.EventLoadFailed, audio.LoadFailed{Filename: "b.wav", Err: errors.New("boom")})
	<-h.Done()

	end, fail := h.Result()
	require.NotNil(t, end)
	assert.Equal(t, audio.EndTimeout, end.Reason)
	require.NotNil(t, fail)
	assert.Equal(t, "b.wav", fail.Filename)
}
