// Package inject exports text, such as a saved record summary, into the
// active application using robotgo keystroke simulation or clipboard paste.
package inject

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// keyboard is the subset of robotgo the injector drives.
type keyboard interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	KeyTap(key, modifier string) error
}

type robotgoKeyboard struct{}

func (robotgoKeyboard) Type(text string)                   { robotgo.Type(text) }
func (robotgoKeyboard) ReadClipboard() (string, error)     { return robotgo.ReadAll() }
func (robotgoKeyboard) WriteClipboard(text string) error   { return robotgo.WriteAll(text) }
func (robotgoKeyboard) KeyTap(key, modifier string) error { return robotgo.KeyTap(key, modifier) }

// Injector sends text to the active application.
type Injector struct {
	method   string // "none", "type" or "paste"
	kb       keyboard
	modifier string
}

// NewInjector creates an Injector for method "none", "type" or "paste".
func NewInjector(method string) (*Injector, error) {
	switch method {
	case "none", "type", "paste":
	default:
		return nil, fmt.Errorf("inject: unknown method %q", method)
	}
	return &Injector{method: method, kb: robotgoKeyboard{}, modifier: pasteModifier(runtime.GOOS)}, nil
}

// Enabled reports whether Inject does anything.
func (inj *Injector) Enabled() bool {
	return inj.method != "none"
}

// Inject sends text using the configured method. Empty text and the "none"
// method are no-ops.
func (inj *Injector) Inject(text string) error {
	if text == "" || !inj.Enabled() {
		return nil
	}

	slog.Debug("inject: sending text", "method", inj.method, "chars", len(text))
	switch inj.method {
	case "paste":
		return inj.paste(text)
	default:
		inj.kb.Type(text)
		return nil
	}
}

// paste writes text to the clipboard, taps the paste shortcut and restores
// the previous clipboard contents on a best effort basis.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.kb.ReadClipboard()

	if err := inj.kb.WriteClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.KeyTap("v", inj.modifier); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", inj.modifier, err)
	}

	_ = inj.kb.WriteClipboard(prev)
	return nil
}

func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
