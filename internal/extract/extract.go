// Package extract turns free clinical dictation into structured record
// fields using language-model backends.
//
// Backends are tried in priority order with one attempt each. Every response
// goes through the same isolate, parse and repair steps; the first backend
// whose response parses wins. When all of them fail, Extract returns
// ErrExtractionFailed and no partial result.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrExtractionFailed is returned when every configured backend failed to
// produce parseable output. The per-backend errors are joined to it.
var ErrExtractionFailed = errors.New("extract: all backends failed")

// Backend is one language-model endpoint.
type Backend interface {
	// Name identifies the backend in logs and errors, e.g. the model id.
	Name() string
	// Generate sends prompt and returns the raw model text.
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Result holds the fields extracted from one dictation.
type Result struct {
	CorrectedText string `json:"corrected_text"`
	PatientName   string `json:"patient_name"`
	Age           Age    `json:"age"`
	Reason        string `json:"reason"`
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
}

// Engine runs ordered-fallback extraction over a list of backends.
type Engine struct {
	backends    []Backend
	temperature float32

	// OnFallback, when set, is called with each backend that failed before
	// the next one is tried.
	OnFallback func(backend string, err error)
}

// NewEngine creates an Engine that tries backends in the given order.
func NewEngine(temperature float32, backends ...Backend) *Engine {
	return &Engine{backends: backends, temperature: temperature}
}

// Backends returns the backend names in priority order.
func (e *Engine) Backends() []string {
	names := make([]string, len(e.backends))
	for i, b := range e.backends {
		names[i] = b.Name()
	}
	return names
}

// Extract sends text to each backend in order and returns the first result
// that parses. Cancelling ctx stops the fallback chain.
func (e *Engine) Extract(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("extract: empty text")
	}
	if len(e.backends) == 0 {
		return Result{}, fmt.Errorf("%w: no backends configured", ErrExtractionFailed)
	}

	prompt := BuildPrompt(text)
	var errs []error
	for _, b := range e.backends {
		res, err := e.attempt(ctx, b, prompt)
		if err == nil {
			slog.Debug("extract: backend succeeded", "backend", b.Name())
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("extract: %w", ctxErr)
		}

		err = fmt.Errorf("%s: %w", b.Name(), err)
		errs = append(errs, err)
		slog.Warn("extract: backend failed", "backend", b.Name(), "err", err)
		if e.OnFallback != nil {
			e.OnFallback(b.Name(), err)
		}
	}
	return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, errors.Join(errs...))
}

func (e *Engine) attempt(ctx context.Context, b Backend, prompt string) (Result, error) {
	raw, err := b.Generate(ctx, prompt, e.temperature)
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	return Parse(raw)
}
