package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/RyanBlaney/sonido-score/score"
	"github.com/RyanBlaney/sonido-score/transcode"
	"github.com/google/uuid"
)

// Placeholders replaced in CommandModelConfig.Args
const (
	PlaceholderInput   = "{input}"   // temporary WAV file
	PlaceholderOutput  = "{output}"  // expected MIDI file
	PlaceholderOutDir  = "{outdir}"  // directory the MIDI may be written into
	PlaceholderWeights = "{weights}" // restored model weights
)

// NoteModel is a black box that transcribes samples into note events
type NoteModel interface {
	Name() string
	Transcribe(ctx context.Context, samples []float64, sampleRate int) ([]score.RawNoteEvent, error)
}

// WeightLoader is implemented by models that load weights through a ModelCache
type WeightLoader interface {
	LoadWeights(ctx context.Context, cache ModelCache) error
}

// ModelError describes a failed model invocation
type ModelError struct {
	Model    string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ModelError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Model, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Model, e.Cause)
}

func (e *ModelError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrModelFailed}
	}
	return []error{ErrModelFailed, e.Cause}
}

// CommandModelConfig describes an external transcription command such as
// basic-pitch. The command reads a WAV file and writes a MIDI file.
type CommandModelConfig struct {
	Name        string        `json:"name" mapstructure:"name"`
	Command     string        `json:"command" mapstructure:"command"`
	Args        []string      `json:"args" mapstructure:"args"`
	WeightsPath string        `json:"weights_path" mapstructure:"weights_path"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	TempDir     string        `json:"temp_dir" mapstructure:"temp_dir"`
}

// DefaultCommandModelConfig runs basic-pitch with its MIDI output enabled
func DefaultCommandModelConfig() CommandModelConfig {
	return CommandModelConfig{
		Name:    "basic-pitch",
		Command: "basic-pitch",
		Args:    []string{PlaceholderOutDir, PlaceholderInput},
		Timeout: 5 * time.Minute,
	}
}

// CommandModel runs an external transcription command
type CommandModel struct {
	config CommandModelConfig
	logger logging.Logger

	mu          sync.Mutex
	weightsFile string
	restored    bool // weightsFile is a temp file owned by the model
}

// NewCommandModel creates a command backed model
func NewCommandModel(config CommandModelConfig) *CommandModel {
	if config.Name == "" {
		config.Name = filepath.Base(config.Command)
	}
	return &CommandModel{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "command_model",
			"model":     config.Name,
		}),
	}
}

func (m *CommandModel) Name() string {
	return m.config.Name
}

func (m *CommandModel) cacheKey() string {
	return "weights:" + m.config.Name
}

// LoadWeights makes the configured weights available to the command. Weights
// are read from WeightsPath on the first run and stored in the cache; later runs
// restore them from the cache into a temporary file.
func (m *CommandModel) LoadWeights(ctx context.Context, cache ModelCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.WeightsPath == "" || m.weightsFile != "" {
		return nil
	}
	if cache == nil {
		m.weightsFile = m.config.WeightsPath
		return nil
	}

	key := m.cacheKey()
	data, err := cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		data, err = os.ReadFile(m.config.WeightsPath)
		if err != nil {
			return &ModelError{Model: m.config.Name, Cause: fmt.Errorf("reading weights: %w", err)}
		}
		if err := cache.Put(ctx, key, data); err != nil {
			return fmt.Errorf("caching weights: %w", err)
		}
		m.logger.Info("Model weights cached", logging.Fields{"bytes": len(data)})
		m.weightsFile = m.config.WeightsPath
		return nil
	case err != nil:
		return fmt.Errorf("reading cached weights: %w", err)
	}

	restored, err := os.CreateTemp(m.config.TempDir, "sonido-weights-*"+filepath.Ext(m.config.WeightsPath))
	if err != nil {
		return fmt.Errorf("restoring weights: %w", err)
	}
	if _, err := restored.Write(data); err != nil {
		restored.Close()
		os.Remove(restored.Name())
		return fmt.Errorf("restoring weights: %w", err)
	}
	if err := restored.Close(); err != nil {
		os.Remove(restored.Name())
		return fmt.Errorf("restoring weights: %w", err)
	}

	m.logger.Debug("Model weights restored from cache", logging.Fields{
		"bytes": len(data),
		"path":  restored.Name(),
	})
	m.weightsFile = restored.Name()
	m.restored = true
	return nil
}

// Close removes weights restored from the cache. The next LoadWeights
// restores them again.
func (m *CommandModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.restored {
		return nil
	}
	path := m.weightsFile
	m.weightsFile, m.restored = "", false
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing restored weights: %w", err)
	}
	return nil
}

// Transcribe writes samples to a temporary WAV, runs the command and reads the
// MIDI file it produces
func (m *CommandModel) Transcribe(ctx context.Context, samples []float64, sampleRate int) ([]score.RawNoteEvent, error) {
	if m.config.Command == "" {
		return nil, &ModelError{Model: m.config.Name, Cause: errors.New("no command configured")}
	}

	dir, err := os.MkdirTemp(m.config.TempDir, "sonido-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	id := uuid.NewString()
	input := filepath.Join(dir, id+".wav")
	output := filepath.Join(dir, id+".mid")

	if err := writeWAVFile(input, samples, sampleRate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	weights := m.weightsFile
	m.mu.Unlock()

	replacer := strings.NewReplacer(
		PlaceholderInput, input,
		PlaceholderOutput, output,
		PlaceholderOutDir, dir,
		PlaceholderWeights, weights,
	)
	args := make([]string, len(m.config.Args))
	for i, arg := range m.config.Args {
		args[i] = replacer.Replace(arg)
	}

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.config.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	m.logger.Debug("Running model command", logging.Fields{
		"command": m.config.Command,
		"args":    strings.Join(args, " "),
	})

	start := time.Now()
	if err := cmd.Run(); err != nil {
		modelErr := &ModelError{
			Model:  m.config.Name,
			Stderr: strings.TrimSpace(stderr.String()),
			Cause:  err,
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			modelErr.ExitCode = exitErr.ExitCode()
		}
		return nil, modelErr
	}

	midiPath, err := findMIDI(output, dir)
	if err != nil {
		return nil, &ModelError{Model: m.config.Name, Cause: err}
	}

	f, err := os.Open(midiPath)
	if err != nil {
		return nil, &ModelError{Model: m.config.Name, Cause: err}
	}
	defer f.Close()

	events, err := ReadMIDINotes(f)
	if err != nil {
		return nil, &ModelError{Model: m.config.Name, Cause: err}
	}

	m.logger.Debug("Model command completed", logging.Fields{
		"events":   len(events),
		"duration": time.Since(start).Seconds(),
	})
	return events, nil
}

func writeWAVFile(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model input: %w", err)
	}
	if err := transcode.EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return fmt.Errorf("writing model input: %w", err)
	}
	return f.Close()
}

// findMIDI returns the expected output file, or the first MIDI file written
// into dir for tools that choose their own file names
func findMIDI(expected, dir string) (string, error) {
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}
	for _, pattern := range []string{"*.mid", "*.midi"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no MIDI output in %s", dir)
}
