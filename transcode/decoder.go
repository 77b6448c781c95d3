package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-score/logging"
	"github.com/go-audio/wav"
)

// ErrDecode reports input that could not be decoded into samples
var ErrDecode = errors.New("audio decode failed")

// DecodeError carries the source that failed to decode
type DecodeError struct {
	Source string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("decoding %s failed", e.Source)
	}
	return fmt.Sprintf("decoding %s failed: %v", e.Source, e.Cause)
}

// Unwrap exposes both ErrDecode and the cause to errors.Is
func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Cause}
}

func decodeError(source string, cause error) error {
	return &DecodeError{Source: source, Cause: cause}
}

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"` // first channel, normalized to [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source
	Duration   time.Duration `json:"duration"`
	Metadata   *Metadata     `json:"metadata,omitempty"`
}

// Metadata describes where the audio came from
type Metadata struct {
	Source     string `json:"source"`
	Format     string `json:"format"`
	BitDepth   int    `json:"bit_depth,omitempty"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Comments   string `json:"comments,omitempty"`
	Normalized bool   `json:"normalized,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// FFmpegPath is used for anything that is not WAV; empty disables the fallback
	FFmpegPath       string        `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	TargetSampleRate int           `json:"target_sample_rate" mapstructure:"target_sample_rate"` // ffmpeg output rate
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"`                       // ffmpeg timeout
	MaxDuration      time.Duration `json:"max_duration" mapstructure:"max_duration"`             // 0 means no limit
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath:       "ffmpeg",
		TargetSampleRate: 44100,
		Timeout:          30 * time.Second,
		MaxDuration:      0,
	}
}

// Decoder turns audio files into mono sample buffers. WAV is decoded natively,
// other formats go through ffmpeg when it is configured.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes the file at path
func (d *Decoder) DecodeFile(path string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": path,
	})
	logger.Debug("Starting audio file decode")

	f, err := os.Open(path)
	if err != nil {
		return nil, decodeError(path, err)
	}
	defer f.Close()

	if wav.NewDecoder(f).IsValidFile() {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, decodeError(path, err)
		}
		audio, err := d.decodeWAV(f, path)
		if errors.Is(err, ErrUnsupportedEncoding) && d.config.FFmpegPath != "" {
			logger.Debug("WAV encoding not supported natively, using ffmpeg", logging.Fields{"error": err.Error()})
			return d.decodeWithFFmpeg(path)
		}
		return audio, err
	}

	if d.config.FFmpegPath == "" {
		return nil, decodeError(path, fmt.Errorf("unsupported format %q", filepath.Ext(path)))
	}
	return d.decodeWithFFmpeg(path)
}

// DecodeWAV decodes a RIFF/WAVE stream
func (d *Decoder) DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	return d.decodeWAV(r, "stream")
}

// DecodeBytes decodes an in-memory WAV file
func (d *Decoder) DecodeBytes(data []byte) (*AudioData, error) {
	if len(data) == 0 {
		return nil, decodeError("bytes", errors.New("empty audio data"))
	}
	return d.decodeWAV(bytes.NewReader(data), "bytes")
}

func (d *Decoder) decodeWAV(r io.ReadSeeker, source string) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, decodeError(source, errors.New("not a valid WAV file"))
	}

	toFloat, err := sampleConverter(decoder.WavAudioFormat, int(decoder.BitDepth))
	if err != nil {
		return nil, decodeError(source, err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, decodeError(source, err)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)
	if channels <= 0 || sampleRate <= 0 || bitDepth <= 0 {
		return nil, decodeError(source, fmt.Errorf("invalid format: %d channels, %d Hz, %d bit", channels, sampleRate, bitDepth))
	}

	// keep the first channel
	frames := len(buf.Data) / channels
	frames = d.limitFrames(frames, sampleRate)
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = toFloat(buf.Data[i*channels])
	}

	metadata := &Metadata{
		Source:   source,
		Format:   "wav",
		BitDepth: bitDepth,
	}
	decoder.ReadMetadata()
	if decoder.Metadata != nil {
		metadata.Title = decoder.Metadata.Title
		metadata.Artist = decoder.Metadata.Artist
		metadata.Comments = decoder.Metadata.Comments
	}

	d.logger.Debug("WAV decode completed", logging.Fields{
		"source":      source,
		"samples":     frames,
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesDuration(frames, sampleRate),
		Metadata:   metadata,
	}, nil
}

// decodeWithFFmpeg asks ffmpeg for mono float64 little-endian samples
func (d *Decoder) decodeWithFFmpeg(path string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "decodeWithFFmpeg",
		"filename": path,
	})

	sampleRate := d.config.TargetSampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-map", "0:a:0?",
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}
	args = append(args, "pipe:1")

	ctx := context.Background()
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		logger.Error(err, "FFmpeg decode failed", logging.Fields{
			"stderr": stderr.String(),
		})
		return nil, decodeError(path, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, decodeError(path, errors.New("no audio samples decoded"))
	}

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(samples), sampleRate),
		Metadata: &Metadata{
			Source: path,
			Format: strings.TrimPrefix(filepath.Ext(path), "."),
		},
	}, nil
}

// WAVE format tags
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// ErrUnsupportedEncoding marks WAV encodings the native decoder cannot read
var ErrUnsupportedEncoding = errors.New("unsupported wav encoding")

// sampleConverter maps raw decoder values to [-1, 1]. 8-bit PCM is unsigned;
// 32-bit float arrives as the int32 of its bit pattern.
func sampleConverter(format uint16, bitDepth int) (func(int) float64, error) {
	switch format {
	case wavFormatPCM, wavFormatExtensible:
		switch bitDepth {
		case 8:
			return func(v int) float64 { return float64(v-128) / 128 }, nil
		case 16, 24, 32:
			maxVal := float64(int64(1) << (bitDepth - 1))
			return func(v int) float64 { return float64(v) / maxVal }, nil
		}
	case wavFormatIEEEFloat:
		if bitDepth == 32 {
			return func(v int) float64 { return float64(math.Float32frombits(uint32(int32(v)))) }, nil
		}
	}
	return nil, fmt.Errorf("%w: format %d, %d bit", ErrUnsupportedEncoding, format, bitDepth)
}

func (d *Decoder) limitFrames(frames, sampleRate int) int {
	if d.config.MaxDuration <= 0 {
		return frames
	}
	return min(frames, int(d.config.MaxDuration.Seconds()*float64(sampleRate)))
}

func samplesDuration(frames, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

func bytesToFloat64(data []byte) []float64 {
	// trim to a multiple of 8 bytes
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
