// Package models downloads multilingual whisper.cpp models.
package models

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// BaseURL is where ggml model files are fetched from.
const BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Model is a downloadable whisper model. Only multilingual models are
// offered; English-only (.en) models cannot transcribe Spanish.
type Model struct {
	Name   string // file name, e.g. "ggml-base.bin"
	SizeMB int
	Note   string
}

// Available lists the models offered by the interactive download.
var Available = []Model{
	{Name: "ggml-tiny.bin", SizeMB: 75, Note: "fastest, lowest accuracy"},
	{Name: "ggml-base.bin", SizeMB: 142, Note: "default"},
	{Name: "ggml-small.bin", SizeMB: 466, Note: "better accuracy, slower"},
}

// DefaultModel is the model referenced by the default config.
const DefaultModel = "ggml-base.bin"

// Download fetches baseURL+name into dir, printing progress to out. The
// file is written to a temporary name and renamed when complete. An
// existing non-empty file is kept. It returns the model path.
func Download(ctx context.Context, client *http.Client, baseURL, name, dir string, out io.Writer) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	destPath := filepath.Join(dir, name)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	url := strings.TrimRight(baseURL, "/") + "/" + name
	fmt.Fprintf(out, "  Downloading %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{writer: f, out: out, total: resp.ContentLength, label: name}
	written, err := io.Copy(pw, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}

// RunInteractiveDownload asks which model to fetch and downloads it into
// dir. An empty answer selects DefaultModel. It returns the model path.
func RunInteractiveDownload(ctx context.Context, in io.Reader, out io.Writer, dir string) (string, error) {
	fmt.Fprintln(out, "=== Model Download ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Models will be downloaded to: %s\n", dir)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Which model would you like to download?")
	for i, m := range Available {
		fmt.Fprintf(out, "  [%d] %s (~%d MB) - %s\n", i+1, m.Name, m.SizeMB, m.Note)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Choice [1-%d, enter for %s]: ", len(Available), DefaultModel)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading choice: %w", err)
	}
	m, err := choose(strings.TrimSpace(line))
	if err != nil {
		return "", err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Downloading %s...\n", m.Name)
	return Download(ctx, nil, BaseURL, m.Name, dir, out)
}

func choose(choice string) (Model, error) {
	if choice == "" {
		for _, m := range Available {
			if m.Name == DefaultModel {
				return m, nil
			}
		}
	}
	for i, m := range Available {
		if choice == fmt.Sprint(i+1) {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("invalid choice: %q (expected 1-%d)", choice, len(Available))
}
