package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Alexander-D-Karpov/streamplayer/internal/formats"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// Rest is the sequence step that plays silence.
const Rest = "-"

var ErrInvalidManifest = errors.New("invalid patch manifest")

// Manifest describes a patch: named sample resources and one or more songs,
// each a sequence of sample names.
type Manifest struct {
	Title      string      `yaml:"title"`
	Author     string      `yaml:"author"`
	SampleRate int         `yaml:"sample_rate"`
	Channels   int         `yaml:"channels"`
	RestMs     int         `yaml:"rest_ms"`
	Samples    []SampleRef `yaml:"samples"`
	Songs      []Song      `yaml:"songs"`
}

type SampleRef struct {
	Name string  `yaml:"name"`
	Key  string  `yaml:"key"`
	Lazy bool    `yaml:"lazy"`
	Gain float64 `yaml:"gain"`
}

type Song struct {
	Title string   `yaml:"title"`
	Steps []string `yaml:"steps"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if m.SampleRate == 0 {
		m.SampleRate = defaultInputRate
	}
	if m.RestMs == 0 {
		m.RestMs = 250
	}
	if m.SampleRate < 0 || m.RestMs < 0 {
		return nil, fmt.Errorf("%w: negative sample_rate or rest_ms", ErrInvalidManifest)
	}
	if m.Channels < 0 || m.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidManifest, m.Channels)
	}
	if len(m.Songs) == 0 {
		return nil, fmt.Errorf("%w: no songs", ErrInvalidManifest)
	}

	names := make(map[string]bool, len(m.Samples))
	for i := range m.Samples {
		s := &m.Samples[i]
		if s.Key == "" {
			return nil, fmt.Errorf("%w: sample %d has no key", ErrInvalidManifest, i)
		}
		if s.Name == "" {
			s.Name = s.Key
		}
		if s.Gain == 0 {
			s.Gain = 1
		}
		names[s.Name] = true
	}
	for _, song := range m.Songs {
		for _, step := range song.Steps {
			if step != Rest && !names[step] {
				return nil, fmt.Errorf("%w: song %q uses unknown sample %q", ErrInvalidManifest, song.Title, step)
			}
		}
	}
	return &m, nil
}

// Patch sequences short samples described by a YAML manifest. Samples marked
// lazy are only requested when the sequence first reaches them, so a missing
// one surfaces during playback rather than during load.
type Patch struct {
	Base

	channels int
	decoders *formats.Registry
	manifest *Manifest
	dir      string
	voices   map[string][]int16

	song    int
	step    int
	frame   int
	played  int
	batch   types.SampleBatch
	buf     []byte
	silence []int16
}

// NewPatch creates a patch player emitting the given number of channels.
// Manifests that ask for a different layout fail to load.
func NewPatch(decoders *formats.Registry, channels int) *Patch {
	if decoders == nil {
		decoders = formats.Default()
	}
	if channels != 2 {
		channels = 1
	}
	return &Patch{decoders: decoders, channels: channels}
}

func (p *Patch) Channels() int { return p.channels }

func (p *Patch) BytesPerSample() int { return 2 }

func (p *Patch) InputSampleRate() int {
	if p.manifest == nil {
		return defaultInputRate
	}
	return p.manifest.SampleRate
}

// MapBackendFilename resolves sample keys relative to the manifest.
func (p *Patch) MapBackendFilename(name string) string {
	return p.dir + name
}

func (p *Patch) LoadTrackData(_ int, dir, filename string, data []byte, _ types.TrackOptions) types.Status {
	p.dir = dir
	if data == nil {
		var ok bool
		if data, ok = p.FileData(dir, filename); !ok {
			var status types.Status
			if data, status = p.request(filename); status != types.StatusOK {
				return status
			}
		}
	}

	m, err := ParseManifest(data)
	if err != nil {
		p.debugLog("%s: %v", filename, err)
		return types.StatusError
	}
	if m.Channels != 0 && m.Channels != p.channels {
		p.debugLog("%s wants %d channels, player has %d", filename, m.Channels, p.channels)
		return types.StatusError
	}
	p.manifest = m
	p.voices = make(map[string][]int16, len(m.Samples))

	// request every eager sample before reporting, so they are fetched together
	result := types.StatusOK
	for _, ref := range m.Samples {
		if ref.Lazy {
			continue
		}
		status := p.loadVoice(ref)
		if status.IsError() {
			return status
		}
		if status != types.StatusOK {
			result = status
		}
	}
	return result
}

func (p *Patch) loadVoice(ref SampleRef) types.Status {
	data, status := p.request(ref.Key)
	if status != types.StatusOK {
		return status
	}

	pcm, err := p.decoders.DecodeAll(ref.Key, data)
	if err != nil {
		p.debugLog("decode %s: %v", ref.Key, err)
		return types.StatusError
	}
	p.voices[ref.Name] = p.convert(pcm, ref.Gain)
	return types.StatusOK
}

// convert brings a decoded sample to the manifest layout using nearest-frame
// rate conversion.
func (p *Patch) convert(pcm *formats.PCM, gain float64) []int16 {
	ch := p.channels
	in := pcm.Frames()
	out := int(int64(in) * int64(p.manifest.SampleRate) / int64(pcm.SampleRate))

	voice := make([]int16, out*ch)
	for i := range out {
		src := int(int64(i) * int64(pcm.SampleRate) / int64(p.manifest.SampleRate))
		frame := pcm.Samples[src*pcm.Channels : (src+1)*pcm.Channels]
		for c := range ch {
			var v float32
			switch {
			case ch == 1:
				for _, s := range frame {
					v += s
				}
				v /= float32(len(frame))
			case c < len(frame):
				v = frame[c]
			default:
				v = frame[0]
			}
			voice[i*ch+c] = toInt16(float64(v) * gain)
		}
	}
	return voice
}

func toInt16(v float64) int16 {
	return int16(math.Max(-32768, math.Min(32767, math.Round(v*32768))))
}

func (p *Patch) SelectTrackOptions(opts types.TrackOptions) types.Status {
	if opts.Track < 0 || opts.Track >= len(p.manifest.Songs) {
		return types.StatusError
	}
	p.song = opts.Track
	p.step, p.frame, p.played = 0, 0, 0

	if h := p.Host(); h != nil {
		h.SongUpdate(map[string]string{
			"songName": p.manifest.Songs[p.song].Title,
			"numSongs": strconv.Itoa(len(p.manifest.Songs)),
		})
	}
	return types.StatusOK
}

func (p *Patch) ref(name string) (SampleRef, bool) {
	for _, r := range p.manifest.Samples {
		if r.Name == name {
			return r, true
		}
	}
	return SampleRef{}, false
}

// stepVoice returns the frames of one sequence step, nil meaning silence.
func (p *Patch) stepVoice(name string) ([]int16, int, types.Status) {
	ch := p.channels
	if name == Rest {
		return nil, p.manifest.RestMs * p.manifest.SampleRate / 1000, types.StatusOK
	}

	voice, ok := p.voices[name]
	if !ok {
		ref, _ := p.ref(name)
		if status := p.loadVoice(ref); status != types.StatusOK {
			return nil, 0, status
		}
		voice = p.voices[name]
	}
	return voice, len(voice) / ch, types.StatusOK
}

// ComputeNextBatch emits at most one step per call, so batch lengths follow
// the sample lengths.
func (p *Patch) ComputeNextBatch() types.Status {
	song := p.manifest.Songs[p.song]
	ch := p.channels

	for p.step < len(song.Steps) {
		voice, frames, status := p.stepVoice(song.Steps[p.step])
		if status != types.StatusOK {
			return status
		}
		if p.frame >= frames {
			p.step++
			p.frame = 0
			continue
		}

		n := min(frames-p.frame, BatchFrames)
		if cap(p.buf) < BatchFrames*ch*2 {
			p.buf = make([]byte, BatchFrames*ch*2)
		}
		p.buf = p.buf[:n*ch*2]
		if voice == nil {
			clear(p.buf)
		} else {
			for i, v := range voice[p.frame*ch : (p.frame+n)*ch] {
				binary.LittleEndian.PutUint16(p.buf[i*2:], uint16(v))
			}
		}

		p.frame += n
		p.played += n
		p.batch = types.SampleBatch{Data: p.buf, Frames: n, Channels: ch, BytesPerSample: 2}
		return types.StatusOK
	}
	return types.StatusEnd
}

func (p *Patch) Batch() types.SampleBatch { return p.batch }

func (p *Patch) UpdateSongInfo(filename string, info types.SongInfo) {
	info["title"] = p.manifest.Title
	info["author"] = p.manifest.Author
	if info["title"] == "" {
		_, info["title"] = p.PathAndFilename(filename)
	}
}

func (p *Patch) SongInfoMeta() map[string]string {
	return map[string]string{
		"title":    "String",
		"author":   "String",
		"songName": "String",
		"numSongs": "Number",
	}
}

func (p *Patch) Teardown() {
	p.manifest = nil
	p.voices = nil
	p.batch = types.SampleBatch{}
}

func (p *Patch) PlaybackPosition() int {
	if p.manifest == nil {
		return 0
	}
	return p.played * 1000 / p.manifest.SampleRate
}
