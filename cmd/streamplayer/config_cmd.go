package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alexander-D-Karpov/streamplayer/internal/platform"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		dir, err := platform.GetConfigDir()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", dir)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
