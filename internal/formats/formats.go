// Package formats decodes compressed and container audio into interleaved
// float32 samples in [-1, 1].
package formats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrUnknownFormat     = errors.New("unknown audio format")
	ErrUnsupportedLayout = errors.New("unsupported sample layout")
)

// Source is a decoded PCM stream.
type Source interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number of
	// values written. It returns 0, io.EOF once the stream is exhausted.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// Registry maps format names to decoders.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Default knows wav, mp3 and ogg.
func Default() *Registry {
	r := NewRegistry()
	r.Register("wav", WAVDecoder{})
	r.Register("mp3", MP3Decoder{})
	r.Register("ogg", VorbisDecoder{})
	return r
}

func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[format]
	return d, ok
}

// Detect guesses the format from the leading bytes of data, falling back to
// the extension of name.
func Detect(name string, data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return "ogg"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}

	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")); ext {
	case "wave":
		return "wav"
	case "oga", "vorbis":
		return "ogg"
	default:
		return ext
	}
}

func (r *Registry) Open(name string, data []byte) (Source, error) {
	format := Detect(name, data)
	d, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}

	src, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s as %s: %w", name, format, err)
	}
	return src, nil
}

// PCM is a fully decoded track.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// DecodeAll decodes data completely.
func (r *Registry) DecodeAll(name string, data []byte) (*PCM, error) {
	src, err := r.Open(name, data)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return ReadAll(src)
}

func ReadAll(src Source) (*PCM, error) {
	if src.Channels() < 1 || src.SampleRate() < 1 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedLayout, src.Channels(), src.SampleRate())
	}

	pcm := &PCM{SampleRate: src.SampleRate(), Channels: src.Channels()}
	buf := make([]float32, 4096*src.Channels())
	for {
		n, err := src.ReadSamples(buf)
		pcm.Samples = append(pcm.Samples, buf[:n]...)
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samples: %w", err)
		}
	}

	// drop a trailing partial frame
	pcm.Samples = pcm.Samples[:pcm.Frames()*pcm.Channels]
	return pcm, nil
}
