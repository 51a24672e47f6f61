// Package transcribe provides speech-to-text for captured dictation.
//
// Engine prepares the captured buffer (range normalization, resampling to
// 16 kHz), writes it to a temporary 16-bit PCM mono WAV file and hands that
// file to a Model. Supported models:
//   - whisper: whisper.cpp via Go bindings (default)
//   - server: a whisper.cpp compatible HTTP server
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/chaz8081/ambudictate/internal/config"
)

// TargetSampleRate is the sample rate of the WAV handed to models.
const TargetSampleRate = 16000

// ErrTranscription reports a model failure. The temporary audio file has
// already been removed when it is returned.
var ErrTranscription = errors.New("transcribe: transcription failed")

// Result is a model's answer for one audio file.
type Result struct {
	Text     string
	Language string
}

// Model converts a 16 kHz 16-bit PCM mono WAV file to text.
type Model interface {
	TranscribeFile(ctx context.Context, path, language string) (Result, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Model based on the config backend setting.
func New(cfg *config.TranscribeConfig) (Model, error) {
	switch cfg.Backend {
	case "server":
		return NewServerModel(cfg.ServerURL, nil), nil
	case "whisper", "":
		return NewWhisperModel(cfg.ModelPath)
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper, server)", cfg.Backend)
	}
}

// Engine runs transcriptions against a Model. It holds no per-call state.
type Engine struct {
	model   Model
	tempDir string
}

// NewEngine wraps model. tempDir holds the per-call WAV files; empty uses
// os.TempDir().
func NewEngine(model Model, tempDir string) *Engine {
	return &Engine{model: model, tempDir: tempDir}
}

// Close releases the underlying model.
func (e *Engine) Close() error {
	return e.model.Close()
}

// Transcribe converts mono samples captured at sampleRate to text in the
// given language. The temporary WAV file is removed on every return path.
// Disfluencies are left in place; cleaning them is the caller's job.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if sampleRate <= 0 {
		return "", fmt.Errorf("transcribe: sample rate must be > 0, got %d", sampleRate)
	}
	if len(samples) == 0 {
		return "", nil
	}

	pcm := Rescale(samples)
	if sampleRate != TargetSampleRate {
		pcm = Resample(pcm, sampleRate, TargetSampleRate)
	}

	f, err := os.CreateTemp(e.tempDir, "dictation-*.wav")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp file: %w", ErrTranscription, err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("transcribe: removing temp file", "path", path, "err", err)
		}
	}()

	if err := writeWAV(f, pcm); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: encoding wav: %w", ErrTranscription, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: closing temp file: %w", ErrTranscription, err)
	}

	slog.Debug("transcribe: audio encoded", "path", path, "samples", len(pcm), "language", language)

	res, err := e.model.TranscribeFile(ctx, path, language)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	return strings.TrimSpace(res.Text), nil
}
