package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// whisperModelPath resolves the path to the multilingual whisper model
// relative to the project root.
func whisperModelPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s (run 'ambudictate -download-model' first): %v", path, err)
	}
	return path
}

// jfkPath returns the whisper.cpp sample recording, skipping when absent.
func jfkPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("WAV file not found at %s: %v", path, err)
	}
	return path
}

func TestNewWhisperModel(t *testing.T) {
	path := whisperModelPath(t)

	m, err := NewWhisperModel(path)
	if err != nil {
		t.Fatalf("NewWhisperModel(%q) returned error: %v", path, err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
}

func TestNewWhisperModelBadPath(t *testing.T) {
	_, err := NewWhisperModel("/nonexistent/model.bin")
	if err == nil {
		t.Fatal("NewWhisperModel with bad path should return error")
	}
}

func TestWhisperTranscribeFileJFK(t *testing.T) {
	m, err := NewWhisperModel(whisperModelPath(t))
	if err != nil {
		t.Fatalf("NewWhisperModel: %v", err)
	}
	defer func() { _ = m.Close() }()

	res, err := m.TranscribeFile(context.Background(), jfkPath(t), "en")
	if err != nil {
		t.Fatalf("TranscribeFile returned error: %v", err)
	}
	lower := strings.ToLower(res.Text)
	if !strings.Contains(lower, "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", res.Text)
	}
}

func TestWhisperTranscribeSilence(t *testing.T) {
	m, err := NewWhisperModel(whisperModelPath(t))
	if err != nil {
		t.Fatalf("NewWhisperModel: %v", err)
	}
	defer func() { _ = m.Close() }()

	// One second of silence should not error.
	engine := NewEngine(m, t.TempDir())
	if _, err := engine.Transcribe(context.Background(), make([]float32, 16000), 16000, "es"); err != nil {
		t.Fatalf("Transcribe on silence returned error: %v", err)
	}
}

func TestWhisperTranscribeFileCanceled(t *testing.T) {
	m, err := NewWhisperModel(whisperModelPath(t))
	if err != nil {
		t.Fatalf("NewWhisperModel: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.TranscribeFile(ctx, jfkPath(t), "en"); err == nil {
		t.Fatal("TranscribeFile with canceled context should return error")
	}
}
