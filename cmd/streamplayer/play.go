package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Alexander-D-Karpov/streamplayer/internal/audio"
	"github.com/Alexander-D-Karpov/streamplayer/internal/output"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	playOutput  string
	playTimeout int
	playTrack   int
	playVolume  float64
)

var playCmd = &cobra.Command{
	Use:   "play <file|url>",
	Short: "Play a track",
	Long: `Play a track through the configured output.

Resources the track needs are looked up next to it, in fetch.resource_dirs,
and finally under fetch.base_url.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		driver := cfg.Audio.Output
		if cmd.Flags().Changed("output") {
			driver = playOutput
		}
		volume := cfg.Audio.DefaultVolume
		if cmd.Flags().Changed("volume") {
			volume = playVolume
		}

		out, err := output.New(driver, a.player, output.Options{
			SampleRate: cfg.Audio.SampleRate,
			ChunkSize:  cfg.Audio.ChunkSize,
			Volume:     volume,
			Debug:      cfg.Debug,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := out.Close(); err != nil {
				log.Printf("[MAIN] Failed to close output: %v", err)
			}
		}()

		if err := out.Start(); err != nil {
			return err
		}

		opts := types.TrackOptions{Track: playTrack, Timeout: playTimeout}
		if err := a.load(ctx, args[0], opts); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-a.playback.Done():
		}

		end, failed := a.playback.Result()
		if failed != nil {
			return failed.Err
		}
		if end != nil && end.Reason != audio.EndOfTrack {
			fmt.Printf("Stopped: %s\n", end.Reason)
		}
		return nil
	},
}

func init() {
	playCmd.Flags().StringVar(&playOutput, "output", "", "Output driver: speaker or portaudio")
	playCmd.Flags().IntVar(&playTimeout, "timeout", 0, "Stop after this many milliseconds (-1 for no limit)")
	playCmd.Flags().IntVar(&playTrack, "track", 0, "Sub-song to play")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1, "Volume between 0 and 1")
}
