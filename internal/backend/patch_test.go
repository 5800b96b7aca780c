package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/internal/cache"
	"github.com/Alexander-D-Karpov/streamplayer/internal/fetch"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

const demoManifest = `
title: Demo
author: Tester
sample_rate: 8000
rest_ms: 10
samples:
  - name: kick
    key: kick.wav
  - name: pad
    key: pad.wav
    lazy: true
    gain: 0.5
songs:
  - title: intro
    steps: [kick, "-", kick]
  - title: outro
    steps: [pad, kick]
`

func TestParseManifest(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest([]byte(demoManifest))
	require.NoError(t, err)
	assert.Equal(t, "Demo", m.Title)
	assert.Len(t, m.Songs, 2)
	assert.Equal(t, 1.0, m.Samples[0].Gain)
	assert.True(t, m.Samples[1].Lazy)

	bad := map[string]string{
		"not yaml":       "title: [",
		"no songs":       "title: x",
		"unknown sample": "songs: [{title: a, steps: [nope]}]",
		"no key":         "samples: [{name: a}]\nsongs: [{steps: [a]}]",
		"channels":       "channels: 6\nsongs: [{steps: []}]",
		"negative rate":  "sample_rate: -1\nsongs: [{steps: []}]",
	}
	for name, doc := range bad {
		_, err := ParseManifest([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidManifest, name)
	}
}

func loadedPatch(t *testing.T, host *fakeHost, track int) *Patch {
	t.Helper()

	p := NewPatch(nil, 1)
	p.SetHost(host)
	require.Equal(t, types.StatusOK, p.LoadTrackData(44100, "songs/", "demo.patch", []byte(demoManifest), types.TrackOptions{}))
	require.Equal(t, types.StatusOK, p.SelectTrackOptions(types.TrackOptions{Track: track}))
	return p
}

func TestPatchEagerSamplesAreRequestedOnLoad(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	p := NewPatch(nil, 1)
	p.SetHost(host)

	status := p.LoadTrackData(44100, "songs/", "demo.patch", []byte(demoManifest), types.TrackOptions{})
	assert.Equal(t, types.StatusMissingResource, status)
	assert.Equal(t, []string{"kick.wav"}, host.requested)
	assert.Equal(t, "songs/kick.wav", p.MapBackendFilename("kick.wav"))

	host.resources["kick.wav"] = encodeWAV(t, 8000, 1, constant(100, 16384))
	p = loadedPatch(t, host, 0)
	assert.Equal(t, 8000, p.InputSampleRate())
	require.Len(t, host.updates, 1)
	assert.Equal(t, "intro", host.updates[0]["songName"])
	assert.Equal(t, "2", host.updates[0]["numSongs"])

	var sizes []int
	var firsts []float32
	for p.ComputeNextBatch() == types.StatusOK {
		b := p.Batch()
		assert.Equal(t, 1, b.Channels)
		assert.Equal(t, 2, b.BytesPerSample)
		sizes = append(sizes, b.Frames)
		firsts = append(firsts, p.ReadSample(b, 0))
	}
	assert.Equal(t, []int{100, 80, 100}, sizes)
	assert.Equal(t, []float32{0.5, 0, 0.5}, firsts)
	assert.Equal(t, 35, p.PlaybackPosition())

	info := types.SongInfo{}
	p.UpdateSongInfo("songs/demo.patch", info)
	assert.Equal(t, "Demo", info["title"])
	assert.Equal(t, "Tester", info["author"])
}

func TestPatchLazySampleIsRequestedDuringPlayback(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.resources["kick.wav"] = encodeWAV(t, 8000, 1, constant(100, 16384))
	p := loadedPatch(t, host, 1)
	assert.NotContains(t, host.requested, "pad.wav")

	assert.Equal(t, types.StatusMissingResource, p.ComputeNextBatch())
	assert.Contains(t, host.requested, "pad.wav")

	// pad is stereo at twice the rate; it is mixed down and decimated
	host.resources["pad.wav"] = encodeWAV(t, 16000, 2, constant(400*2, 16384))
	require.Equal(t, types.StatusOK, p.ComputeNextBatch())
	b := p.Batch()
	assert.Equal(t, 200, b.Frames)
	assert.InDelta(t, 0.25, p.ReadSample(b, 0), 1e-4)

	require.Equal(t, types.StatusOK, p.ComputeNextBatch())
	assert.Equal(t, 100, p.Batch().Frames)
	assert.Equal(t, types.StatusEnd, p.ComputeNextBatch())

	host.failed["kick.wav"] = true
	delete(host.resources, "kick.wav")
	p = NewPatch(nil, 1)
	p.SetHost(host)
	assert.Equal(t, types.StatusError, p.LoadTrackData(44100, "", "demo.patch", []byte(demoManifest), types.TrackOptions{}))
}

func TestPatchRejectsLayoutMismatch(t *testing.T) {
	t.Parallel()

	p := NewPatch(nil, 2)
	doc := "channels: 1\nsongs: [{steps: []}]"
	assert.Equal(t, types.StatusError, p.LoadTrackData(44100, "", "x.patch", []byte(doc), types.TrackOptions{}))

	p = NewPatch(nil, 1)
	require.Equal(t, types.StatusOK, p.LoadTrackData(44100, "", "x.patch", []byte(doc), types.TrackOptions{}))
	assert.Equal(t, types.StatusError, p.SelectTrackOptions(types.TrackOptions{Track: 3}))
}

func TestPatchPlaysThroughSession(t *testing.T) {
	t.Parallel()

	resources := map[string][]byte{
		"songs/kick.wav": encodeWAV(t, 8000, 1, constant(100, 16384)),
		"songs/pad.wav":  encodeWAV(t, 8000, 1, constant(200, 16384)),
	}
	transport := fetch.TransportFunc(func(_ context.Context, key string) ([]byte, error) {
		if data, ok := resources[key]; ok {
			return data, nil
		}
		return nil, fmt.Errorf("%w: %s", fetch.ErrNotFound, key)
	})

	c := cache.New()
	o := fetch.NewOrchestrator(c, transport, 2, false)
	defer o.Close()

	rec := newRecorder()
	s, err := audio.NewSession(NewPatch(nil, 1), audio.Options{
		OutputRate: 8000,
		ChunkSize:  256,
		Cache:      c,
		Fetcher:    o,
		Notifier:   rec,
	})
	require.NoError(t, err)
	defer s.Close()

	waitReady := func() {
		require.Eventually(t, func() bool {
			s.ProcessEvents()
			return s.State() == audio.StateReady
		}, 2*time.Second, 5*time.Millisecond)
	}

	require.NoError(t, s.LoadTrack("songs/demo.patch", []byte(demoManifest), types.TrackOptions{Track: 1}))
	assert.Equal(t, audio.StateWaitingResource, s.State())
	waitReady()
	assert.Equal(t, "outro", s.SongInfo()["songName"])

	out := [][]float32{make([]float32, 256), make([]float32, 256)}

	// the lazy pad is only requested now
	s.Render(out)
	assert.Equal(t, audio.StateWaitingResource, s.State())
	assert.Equal(t, float32(0), out[0][0])
	waitReady()
	assert.Equal(t, 2, rec.count(audio.EventTrackReady))

	s.Render(out)
	assert.Equal(t, float32(0.25), out[0][0])
	assert.Equal(t, float32(0.25), out[1][199])
	assert.Equal(t, float32(0.5), out[1][200])
	assert.Zero(t, rec.count(audio.EventTrackEnd))

	s.Render(out)
	assert.Equal(t, float32(0.5), out[0][43])
	assert.Equal(t, float32(0), out[0][44])
	require.Equal(t, 1, rec.count(audio.EventTrackEnd))
	end := rec.lastOf(audio.EventTrackEnd).(audio.TrackEnd)
	assert.Equal(t, audio.EndOfTrack, end.Reason)
	assert.Equal(t, "songs/demo.patch", end.Filename)
}
