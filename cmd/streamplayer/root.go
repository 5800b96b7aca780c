package main

import (
	"context"
	"fmt"
	"log"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/internal/config"
	"github.com/Alexander-D-Karpov/streamplayer/internal/fetch"
	"github.com/Alexander-D-Karpov/streamplayer/internal/handlers"
	"github.com/Alexander-D-Karpov/streamplayer/internal/services"
	"github.com/Alexander-D-Karpov/streamplayer/internal/storage"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "streamplayer",
	Short:         "Play tracks that fetch their resources on demand",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.Debug {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("[MAIN] Configuration loaded")
			log.Printf("[MAIN] - Output: %s at %d Hz, chunk %d", cfg.Audio.Output, cfg.Audio.SampleRate, cfg.Audio.ChunkSize)
			log.Printf("[MAIN] - Base URL: %s", cfg.Fetch.BaseURL)
			log.Printf("[MAIN] - Database Path: %s", cfg.Storage.DatabasePath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging for all components")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(playCmd, renderCmd, cacheCmd, configCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// app bundles what the playing commands share.
type app struct {
	store    *storage.Database
	bus      *handlers.EventBus
	playback *handlers.PlaybackHandlers
	player   *services.PlayerService
}

func newApp() (*app, error) {
	store, err := storage.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource store: %w", err)
	}

	bus := handlers.NewEventBus()
	a := &app{
		store:    store,
		bus:      bus,
		playback: handlers.NewPlaybackHandlers(bus, cfg.Debug),
		player:   services.NewPlayerService(cfg, store, bus),
	}
	a.playback.OnTrackReady(func(ev audio.TrackReady) {
		fmt.Printf("Playing %s\n", ev.Filename)
		for _, k := range slices.Sorted(maps.Keys(ev.Info)) {
			if v := ev.Info[k]; v != "" {
				fmt.Printf("  %-10s %s\n", k, v)
			}
		}
	})
	return a, nil
}

func (a *app) load(ctx context.Context, target string, opts types.TrackOptions) error {
	if fetch.IsURL(target) || (cfg.Fetch.BaseURL != "" && !fileExists(target)) {
		return a.player.LoadFromURL(ctx, target, opts)
	}
	return a.player.LoadFromFile(target, opts)
}

func (a *app) Close() {
	if err := a.player.Close(); err != nil {
		log.Printf("[MAIN] Failed to close player: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[MAIN] Failed to close store: %v", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
