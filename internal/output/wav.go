package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	streamaudio "github.com/Alexander-D-Karpov/streamplayer/internal/audio"
)

var ErrRenderFailed = errors.New("track failed while rendering")

// OfflineSource is a session rendered without a real-time device.
type OfflineSource interface {
	Renderer
	State() streamaudio.State
	IsWaiting() bool
	IsEnded() bool
	ProcessEvents() int
}

type WAVOptions struct {
	SampleRate int
	ChunkSize  int
	// MaxSeconds caps the output length; 0 renders until the track ends.
	MaxSeconds int
	// PollInterval is how often a session waiting for a resource is checked.
	PollInterval time.Duration
	Debug        bool
}

// WriteWAV renders src into a 16-bit stereo WAV file until the track ends or
// the length cap is reached, and returns the number of frames written.
func WriteWAV(ctx context.Context, w io.WriteSeeker, src OfflineSource, opts WAVOptions) (int, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	maxFrames := -1
	if opts.MaxSeconds > 0 {
		maxFrames = opts.MaxSeconds * opts.SampleRate
	}

	enc := wav.NewEncoder(w, opts.SampleRate, 16, 2, 1)
	chunk := [][]float32{make([]float32, opts.ChunkSize), make([]float32, opts.ChunkSize)}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: opts.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, opts.ChunkSize*2),
	}

	frames := 0
	for maxFrames < 0 || frames < maxFrames {
		if err := waitPlayable(ctx, src, opts.PollInterval); err != nil {
			_ = enc.Close()
			return frames, err
		}
		if src.IsEnded() {
			break
		}

		src.Render(chunk)

		n := opts.ChunkSize
		if maxFrames >= 0 {
			n = min(n, maxFrames-frames)
		}
		buf.Data = buf.Data[:n*2]
		for i := range n {
			buf.Data[2*i] = toPCM16(chunk[0][i])
			buf.Data[2*i+1] = toPCM16(chunk[1][i])
		}
		if err := enc.Write(buf); err != nil {
			_ = enc.Close()
			return frames, fmt.Errorf("write wav: %w", err)
		}
		frames += n
	}

	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("finish wav: %w", err)
	}
	debugLog(opts.Debug, "Rendered %d frames", frames)
	return frames, nil
}

// waitPlayable blocks while the session waits for a resource.
func waitPlayable(ctx context.Context, src OfflineSource, poll time.Duration) error {
	for {
		src.ProcessEvents()
		switch {
		case src.State() == streamaudio.StateFailed:
			return ErrRenderFailed
		case src.State() == streamaudio.StateIdle:
			return streamaudio.ErrNoTrack
		case !src.IsWaiting():
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func toPCM16(v float32) int {
	return int(math.Max(-32768, math.Min(32767, math.Round(float64(v)*32767))))
}
