package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/internal/platform"
)

const (
	OutputSpeaker   = "speaker"
	OutputPortAudio = "portaudio"
)

type Config struct {
	Debug bool `mapstructure:"debug"`

	Audio struct {
		SampleRate        int     `mapstructure:"sample_rate"`
		ChunkSize         int     `mapstructure:"chunk_size"`
		PlaybackTimeoutMs int     `mapstructure:"playback_timeout_ms"`
		Output            string  `mapstructure:"output"`
		DefaultVolume     float64 `mapstructure:"default_volume"`
	} `mapstructure:"audio"`

	Fetch struct {
		BaseURL       string `mapstructure:"base_url"`
		Timeout       int    `mapstructure:"timeout"`
		Retries       int    `mapstructure:"retries"`
		UserAgent     string `mapstructure:"user_agent"`
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		RateLimit     struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			BurstSize         int `mapstructure:"burst_size"`
		} `mapstructure:"rate_limit"`
		ResourceDirs []string `mapstructure:"resource_dirs"`
	} `mapstructure:"fetch"`

	Storage struct {
		DatabasePath     string `mapstructure:"database_path"`
		CacheDir         string `mapstructure:"cache_dir"`
		EnableWAL        bool   `mapstructure:"enable_wal"`
		PersistResources bool   `mapstructure:"persist_resources"`
	} `mapstructure:"storage"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("STREAMPLAYER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in settings, ignoring config files, the
// environment and anything Load has read.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.chunk_size", audio.DefaultChunkSize)
	v.SetDefault("audio.playback_timeout_ms", -1)
	v.SetDefault("audio.output", OutputSpeaker)
	v.SetDefault("audio.default_volume", 0.7)

	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.timeout", 30)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.user_agent", "StreamPlayer/1.0.0")
	v.SetDefault("fetch.max_concurrent", 3)
	v.SetDefault("fetch.rate_limit.requests_per_second", 20)
	v.SetDefault("fetch.rate_limit.burst_size", 5)
	v.SetDefault("fetch.resource_dirs", []string{})

	dataDir, _ := platform.GetDataDir()
	cacheDir, _ := platform.GetCacheDir()

	v.SetDefault("storage.database_path", filepath.Join(dataDir, "resources.db"))
	v.SetDefault("storage.cache_dir", cacheDir)
	v.SetDefault("storage.enable_wal", true)
	v.SetDefault("storage.persist_resources", true)
}

// Validate rejects settings the player cannot start with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: audio.sample_rate must be positive, got %d",
			audio.ErrConfiguration, c.Audio.SampleRate)
	}
	if err := audio.ValidateChunkSize(c.Audio.ChunkSize); err != nil {
		return fmt.Errorf("audio.chunk_size: %w", err)
	}
	switch c.Audio.Output {
	case OutputSpeaker, OutputPortAudio:
	default:
		return fmt.Errorf("%w: unknown audio.output %q", audio.ErrConfiguration, c.Audio.Output)
	}
	if c.Audio.DefaultVolume < 0 || c.Audio.DefaultVolume > 1 {
		return fmt.Errorf("%w: audio.default_volume must be within [0, 1], got %v",
			audio.ErrConfiguration, c.Audio.DefaultVolume)
	}
	if c.Fetch.MaxConcurrent < 1 {
		return fmt.Errorf("%w: fetch.max_concurrent must be at least 1", audio.ErrConfiguration)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("%w: fetch.retries must not be negative", audio.ErrConfiguration)
	}
	return nil
}

func ensureDirectories(cfg *Config) error {
	dirs := []string{
		filepath.Dir(cfg.Storage.DatabasePath),
		cfg.Storage.CacheDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}

func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}
