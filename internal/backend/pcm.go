package backend

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/Alexander-D-Karpov/streamplayer/internal/formats"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

const defaultInputRate = 44100

// PCM plays decoded WAV, MP3 and Ogg Vorbis tracks as stereo float32 batches.
type PCM struct {
	Base

	decoders *formats.Registry

	filename string
	samples  []float32 // interleaved stereo
	rate     int
	srcChans int
	frame    int

	batch types.SampleBatch
	buf   []byte
}

func NewPCM(decoders *formats.Registry) *PCM {
	if decoders == nil {
		decoders = formats.Default()
	}
	return &PCM{decoders: decoders, rate: defaultInputRate}
}

func (p *PCM) Channels() int { return 2 }

func (p *PCM) BytesPerSample() int { return 4 }

func (p *PCM) InputSampleRate() int { return p.rate }

func (p *PCM) LoadTrackData(_ int, dir, filename string, data []byte, _ types.TrackOptions) types.Status {
	if data == nil {
		var ok bool
		if data, ok = p.FileData(dir, filename); !ok {
			var status types.Status
			if data, status = p.request(dir + filename); status != types.StatusOK {
				return status
			}
		}
	}

	pcm, err := p.decoders.DecodeAll(filename, data)
	if err != nil {
		p.debugLog("decode %s: %v", filename, err)
		return types.StatusError
	}

	p.filename = filename
	p.rate = pcm.SampleRate
	p.srcChans = pcm.Channels
	p.samples = toStereo(pcm)
	p.frame = 0
	p.debugLog("loaded %s: %d frames at %d Hz", filename, len(p.samples)/2, p.rate)
	return types.StatusOK
}

// toStereo duplicates mono input and keeps the first two channels of anything wider.
func toStereo(pcm *formats.PCM) []float32 {
	if pcm.Channels == 2 {
		return pcm.Samples
	}
	frames := pcm.Frames()
	out := make([]float32, frames*2)
	for i := range frames {
		l := pcm.Samples[i*pcm.Channels]
		r := l
		if pcm.Channels > 1 {
			r = pcm.Samples[i*pcm.Channels+1]
		}
		out[2*i], out[2*i+1] = l, r
	}
	return out
}

// SelectTrackOptions accepts only track 0; PCM files have no sub-songs.
func (p *PCM) SelectTrackOptions(opts types.TrackOptions) types.Status {
	if opts.Track != 0 {
		return types.StatusError
	}
	p.frame = 0
	return types.StatusOK
}

func (p *PCM) ComputeNextBatch() types.Status {
	total := len(p.samples) / 2
	if p.frame >= total {
		return types.StatusEnd
	}

	n := min(total-p.frame, BatchFrames)
	if need := n * 2 * 4; cap(p.buf) < need {
		p.buf = make([]byte, BatchFrames*2*4)
	}
	p.buf = p.buf[:n*2*4]
	for i, v := range p.samples[p.frame*2 : (p.frame+n)*2] {
		binary.LittleEndian.PutUint32(p.buf[i*4:], math.Float32bits(v))
	}
	p.frame += n

	p.batch = types.SampleBatch{Data: p.buf, Frames: n, Channels: 2, BytesPerSample: 4}
	return types.StatusOK
}

func (p *PCM) Batch() types.SampleBatch { return p.batch }

// CopySamples skips the per-sample decode on the pass-through path.
func (p *PCM) CopySamples(dst []float32, b types.SampleBatch) int {
	n := min(len(dst), b.Samples())
	for i := range n {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b.Data[i*4:]))
	}
	return n
}

func (p *PCM) UpdateSongInfo(filename string, info types.SongInfo) {
	_, name := p.PathAndFilename(filename)
	info["title"] = name
	info["channels"] = strconv.Itoa(p.srcChans)
	info["sampleRate"] = strconv.Itoa(p.rate)
	info["duration"] = strconv.Itoa(p.MaxPlaybackPosition())
}

func (p *PCM) SongInfoMeta() map[string]string {
	return map[string]string{
		"title":      "String",
		"channels":   "Number",
		"sampleRate": "Number",
		"duration":   "Number",
	}
}

func (p *PCM) Teardown() {
	p.samples = nil
	p.frame = 0
	p.batch = types.SampleBatch{}
}

// MaxPlaybackPosition is the track length in milliseconds.
func (p *PCM) MaxPlaybackPosition() int {
	if p.rate == 0 {
		return 0
	}
	return int(int64(len(p.samples)/2) * 1000 / int64(p.rate))
}

func (p *PCM) PlaybackPosition() int {
	if p.rate == 0 {
		return 0
	}
	return int(int64(p.frame) * 1000 / int64(p.rate))
}

func (p *PCM) Seek(ms int) types.Status {
	if ms < 0 || ms > p.MaxPlaybackPosition() {
		return types.StatusError
	}
	p.frame = min(int(int64(ms)*int64(p.rate)/1000), len(p.samples)/2)
	return types.StatusOK
}
