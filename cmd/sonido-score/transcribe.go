package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RyanBlaney/sonido-score/detect"
	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/transcode"
	"github.com/RyanBlaney/sonido-score/transcription"
	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Transcribe an audio file into a score",
	Long: `Transcribe a piano recording and print the score as JSON.

WAV files are decoded natively; other formats go through ffmpeg.

Examples:
  sonido-score transcribe etude.wav
  sonido-score transcribe etude.mp3 -o etude.json --midi etude.mid
  sonido-score transcribe etude.wav --detector neural --cache models.sqlite3`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

var (
	outputPath   string
	midiOutput   string
	titleFlag    string
	artistFlag   string
	noProgress   bool
	ffmpegBinary string
)

func init() {
	defaults := defaultAppConfig().Transcription
	flags := transcribeCmd.Flags()

	flags.StringVarP(&outputPath, "output", "o", "", "Output file for the score JSON (default: stdout)")
	flags.StringVar(&midiOutput, "midi", "", "Also write the detected notes to a MIDI file")
	flags.StringVar(&titleFlag, "title", "", "Score title (default: file metadata or name)")
	flags.StringVar(&artistFlag, "artist", "", "Score artist (default: file metadata)")
	flags.BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	flags.StringVar(&ffmpegBinary, "ffmpeg", "ffmpeg", "ffmpeg binary for non-WAV input (empty disables)")

	flags.StringP("detector", "d", defaults.Detector, "Note detector (yin, neural)")
	flags.String("key-source", defaults.KeySource, "Key estimation input (audio, notes)")
	flags.Int("measures", defaults.MeasureCount, "Force the number of measures (0 derives it from the notes)")
	flags.String("model-cmd", defaults.Neural.Model.Command, "Transcription model command (neural detector)")
	flags.String("weights", defaults.Neural.Model.WeightsPath, "Model weights file (neural detector)")

	v.BindPFlag("transcription.detector", flags.Lookup("detector"))
	v.BindPFlag("transcription.key_source", flags.Lookup("key-source"))
	v.BindPFlag("transcription.measure_count", flags.Lookup("measures"))
	v.BindPFlag("transcription.neural.model.command", flags.Lookup("model-cmd"))
	v.BindPFlag("transcription.neural.model.weights_path", flags.Lookup("weights"))
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.WithFields(logging.Fields{
		"component": "cli",
		"input":     args[0],
	})

	var cache detect.ModelCache
	if cfg.Transcription.Detector == transcription.DetectorNeural && cfg.Cache != "" {
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

	decoderConfig := transcode.DefaultDecoderConfig()
	decoderConfig.FFmpegPath = ffmpegBinary
	audio, err := transcode.NewDecoder(decoderConfig).DecodeFile(args[0])
	if err != nil {
		return err
	}

	var onProgress transcription.ProgressFunc
	if !noProgress {
		bar := newProgressBar(os.Stderr)
		defer bar.wait()
		onProgress = bar.update
	}

	result, err := transcriber.TranscribeAudio(ctx, audio, onProgress)
	if err != nil {
		return err
	}
	if titleFlag != "" {
		result.Title = titleFlag
	}
	if artistFlag != "" {
		result.Artist = artistFlag
	}

	if midiOutput != "" {
		if err := writeMIDIFile(midiOutput, result); err != nil {
			return err
		}
		logger.Info("MIDI written", logging.Fields{"path": midiOutput, "notes": len(result.Events)})
	}

	out := io.Writer(os.Stdout)
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeScore(out, result)
}

func writeScore(w io.Writer, result *transcription.TranscriptionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing score: %w", err)
	}
	return nil
}

func writeMIDIFile(path string, result *transcription.TranscriptionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := detect.WriteMIDINotes(f, result.Events, result.BPM); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
