package main

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-score/detect"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the model weights cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached model",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	if cfg.Cache == "" {
		return errors.New("no cache configured, set --cache or SONIDO_CACHE")
	}
	cache, err := detect.NewSQLiteModelCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared model cache %s\n", cfg.Cache)
	return nil
}
