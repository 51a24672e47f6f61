package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ServerModel sends audio to a whisper.cpp compatible HTTP server
// (POST /inference, multipart "file" field, JSON response).
type ServerModel struct {
	baseURL string
	client  *http.Client
}

// Compile-time interface satisfaction check.
var _ Model = (*ServerModel)(nil)

// NewServerModel creates a ServerModel for baseURL. A nil client uses
// http.DefaultClient, whose timeouts govern the call.
func NewServerModel(baseURL string, client *http.Client) *ServerModel {
	if client == nil {
		client = http.DefaultClient
	}
	return &ServerModel{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Close is a no-op; the server owns the model.
func (m *ServerModel) Close() error {
	return nil
}

type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

// TranscribeFile uploads the WAV at path and returns the server's text.
func (m *ServerModel) TranscribeFile(ctx context.Context, path, language string) (Result, error) {
	body, contentType, err := inferenceForm(path, language)
	if err != nil {
		return Result{}, fmt.Errorf("server: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/inference", body)
	if err != nil {
		return Result{}, fmt.Errorf("server: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("server: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("server: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("server: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out inferenceResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("server: decode response: %w", err)
	}
	if out.Error != "" {
		return Result{}, fmt.Errorf("server: %s", out.Error)
	}
	if out.Language == "" {
		out.Language = language
	}
	return Result{Text: strings.TrimSpace(out.Text), Language: out.Language}, nil
}

func inferenceForm(path, language string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copying audio: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
