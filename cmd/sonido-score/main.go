package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sonido-score",
	Short: "Transcribe piano recordings into sheet music",
	Long: `sonido-score listens to a piano recording and writes a two-staff score:
tempo, key signature, measures of treble and bass notes, ties, slurs and
dynamics.

Settings are read from --config (YAML, JSON or TOML) and from SONIDO_*
environment variables, e.g. SONIDO_TRANSCRIPTION_DETECTOR=neural.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile string
	cfg     appConfig

	// flags are bound to v; loadConfig merges them with the file and environment
	v = viper.New()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("cache", "", "SQLite model cache file (neural detector)")
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("cache", rootCmd.PersistentFlags().Lookup("cache"))

	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// stdout carries the score
	logging.SetGlobalLogger(logging.NewWriterLogger(os.Stderr, level))
	return nil
}
