package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Alexander-D-Karpov/streamplayer/internal/output"
	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

var (
	renderMaxSeconds int
	renderTrack      int
)

var renderCmd = &cobra.Command{
	Use:   "render <file|url> <out.wav>",
	Short: "Render a track into a 16-bit stereo WAV file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.load(ctx, args[0], types.TrackOptions{Track: renderTrack}); err != nil {
			return err
		}

		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[1], err)
		}
		defer f.Close()

		frames, err := output.WriteWAV(ctx, f, a.player.Session(), output.WAVOptions{
			SampleRate: cfg.Audio.SampleRate,
			ChunkSize:  cfg.Audio.ChunkSize,
			MaxSeconds: renderMaxSeconds,
			Debug:      cfg.Debug,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s: %.1f seconds\n", args[1], float64(frames)/float64(cfg.Audio.SampleRate))
		return nil
	},
}

func init() {
	renderCmd.Flags().IntVar(&renderMaxSeconds, "max-seconds", 600, "Stop after this many seconds (0 for no limit)")
	renderCmd.Flags().IntVar(&renderTrack, "track", 0, "Sub-song to render")
}
