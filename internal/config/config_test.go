package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
)

func isolate(t *testing.T) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "cache"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	return base
}

func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 8192, cfg.Audio.ChunkSize)
	assert.Equal(t, -1, cfg.Audio.PlaybackTimeoutMs)
	assert.Equal(t, OutputSpeaker, cfg.Audio.Output)
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrent)
	assert.True(t, cfg.Storage.PersistResources)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	base := isolate(t)

	path := filepath.Join(base, "player.yaml")
	content := []byte(`
debug: true
audio:
  sample_rate: 48000
  chunk_size: 2048
  playback_timeout_ms: 90000
  output: portaudio
fetch:
  base_url: https://example.com/res
  resource_dirs:
    - /srv/roms
storage:
  persist_resources: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 2048, cfg.Audio.ChunkSize)
	assert.Equal(t, 90000, cfg.Audio.PlaybackTimeoutMs)
	assert.Equal(t, OutputPortAudio, cfg.Audio.Output)
	assert.Equal(t, "https://example.com/res", cfg.Fetch.BaseURL)
	assert.Equal(t, []string{"/srv/roms"}, cfg.Fetch.ResourceDirs)
	assert.False(t, cfg.Storage.PersistResources)

	assert.DirExists(t, cfg.Storage.CacheDir)
	assert.DirExists(t, filepath.Dir(cfg.Storage.DatabasePath))
}

func TestLoadEnvironmentOverride(t *testing.T) {
	isolate(t)
	t.Setenv("STREAMPLAYER_AUDIO_SAMPLE_RATE", "22050")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 22050, cfg.Audio.SampleRate)
}

func TestDefaultIgnoresLoadedSettings(t *testing.T) {
	base := isolate(t)
	t.Setenv("STREAMPLAYER_FETCH_MAX_CONCURRENT", "7")

	path := filepath.Join(base, "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  sample_rate: 48000\n"), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 48000, loaded.Audio.SampleRate)
	require.Equal(t, 7, loaded.Fetch.MaxConcurrent)

	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrent)
}

func TestLoadRejectsBadChunkSize(t *testing.T) {
	base := isolate(t)

	path := filepath.Join(base, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  chunk_size: 3000\n"), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, audio.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"oversized chunk", func(c *Config) { c.Audio.ChunkSize = 32768 }},
		{"unknown output", func(c *Config) { c.Audio.Output = "alsa" }},
		{"loud volume", func(c *Config) { c.Audio.DefaultVolume = 1.5 }},
		{"no workers", func(c *Config) { c.Fetch.MaxConcurrent = 0 }},
		{"negative retries", func(c *Config) { c.Fetch.Retries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), audio.ErrConfiguration)
		})
	}
}
