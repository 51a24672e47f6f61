package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperModel wraps a local whisper.cpp model.
type WhisperModel struct {
	model whisper.Model
}

// Compile-time interface satisfaction check.
var _ Model = (*WhisperModel)(nil)

// NewWhisperModel loads a whisper model from the given path.
// The caller must call Close() when done.
func NewWhisperModel(modelPath string) (*WhisperModel, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	return &WhisperModel{model: model}, nil
}

// Close releases the whisper model resources.
func (m *WhisperModel) Close() error {
	if m.model != nil {
		return m.model.Close()
	}
	return nil
}

// TranscribeFile decodes the WAV at path and runs whisper over it. whisper.cpp
// cannot be interrupted mid-run, so ctx is only checked before and after.
func (m *WhisperModel) TranscribeFile(ctx context.Context, path, language string) (Result, error) {
	samples, rate, err := readWAV(path)
	if err != nil {
		return Result{}, fmt.Errorf("whisper: %w", err)
	}
	if rate != TargetSampleRate {
		samples = Resample(samples, rate, TargetSampleRate)
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if language != "" && m.model.IsMultilingual() {
		if err := wctx.SetLanguage(language); err != nil {
			return Result{}, fmt.Errorf("whisper: set language %q: %w", language, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper: process: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	return Result{
		Text:     strings.TrimSpace(strings.Join(segments, " ")),
		Language: language,
	}, nil
}
