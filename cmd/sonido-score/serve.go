package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-score/detect"
	"github.com/RyanBlaney/sonido-score/internal/server"
	"github.com/RyanBlaney/sonido-score/transcription"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve transcriptions over HTTP",
	Long: `Start an HTTP server that transcribes uploaded WAV files.

  POST /api/transcriptions   WAV body, returns the score as JSON
  GET  /health

Example:
  sonido-score serve --port 8080 --origins https://score.example`,
	RunE: runServe,
}

func init() {
	defaults := defaultAppConfig().Server
	serveCmd.Flags().IntP("port", "p", defaults.Port, "Port to listen on")
	serveCmd.Flags().StringSlice("origins", defaults.AllowedOrigins, "Allowed CORS origins")
	v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	v.BindPFlag("server.allowed_origins", serveCmd.Flags().Lookup("origins"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cache detect.ModelCache
	if cfg.Cache != "" {
		sqliteCache, err := detect.NewSQLiteModelCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer sqliteCache.Close()
		cache = sqliteCache
	}

	transcriber, err := transcription.NewTranscriber(cfg.Transcription, cache)
	if err != nil {
		return err
	}
	defer transcriber.Close()
	return server.New(cfg.Server, transcriber, nil).Run(ctx)
}
