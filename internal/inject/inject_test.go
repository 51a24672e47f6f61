package inject

import (
	"errors"
	"testing"
)

// mockKeyboard records keyboard and clipboard calls.
type mockKeyboard struct {
	typed     []string
	clipboard string
	writes    []string
	taps      []string
	tapErr    error
}

func (m *mockKeyboard) Type(text string) { m.typed = append(m.typed, text) }

func (m *mockKeyboard) ReadClipboard() (string, error) { return m.clipboard, nil }

func (m *mockKeyboard) WriteClipboard(text string) error {
	m.writes = append(m.writes, text)
	m.clipboard = text
	return nil
}

func (m *mockKeyboard) KeyTap(key, modifier string) error {
	m.taps = append(m.taps, modifier+"+"+key)
	return m.tapErr
}

func newTestInjector(method string, kb keyboard) *Injector {
	return &Injector{method: method, kb: kb, modifier: "ctrl"}
}

func TestInjectType(t *testing.T) {
	kb := &mockKeyboard{}
	if err := newTestInjector("type", kb).Inject("HC-2025-0001 Juan"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(kb.typed) != 1 || kb.typed[0] != "HC-2025-0001 Juan" {
		t.Errorf("typed = %v", kb.typed)
	}
}

func TestInjectPasteRestoresClipboard(t *testing.T) {
	kb := &mockKeyboard{clipboard: "previous"}
	if err := newTestInjector("paste", kb).Inject("resumen"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(kb.taps) != 1 || kb.taps[0] != "ctrl+v" {
		t.Errorf("taps = %v, want [ctrl+v]", kb.taps)
	}
	if len(kb.writes) != 2 || kb.writes[0] != "resumen" || kb.clipboard != "previous" {
		t.Errorf("clipboard writes = %v, final = %q", kb.writes, kb.clipboard)
	}
}

func TestInjectPasteKeyTapError(t *testing.T) {
	kb := &mockKeyboard{tapErr: errors.New("no display")}
	if err := newTestInjector("paste", kb).Inject("resumen"); err == nil {
		t.Error("Inject() should fail when the key tap fails")
	}
}

func TestInjectNoops(t *testing.T) {
	kb := &mockKeyboard{}
	if err := newTestInjector("none", kb).Inject("texto"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if err := newTestInjector("type", kb).Inject(""); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(kb.typed) != 0 || len(kb.writes) != 0 {
		t.Errorf("expected no keyboard activity, got typed=%v writes=%v", kb.typed, kb.writes)
	}
}

func TestNewInjector(t *testing.T) {
	for _, m := range []string{"none", "type", "paste"} {
		inj, err := NewInjector(m)
		if err != nil {
			t.Errorf("NewInjector(%q) error = %v", m, err)
			continue
		}
		if inj.Enabled() != (m != "none") {
			t.Errorf("NewInjector(%q).Enabled() = %v", m, inj.Enabled())
		}
	}
	if _, err := NewInjector("ble"); err == nil {
		t.Error("NewInjector(\"ble\") should fail")
	}
}

func TestPasteModifier(t *testing.T) {
	if pasteModifier("darwin") != "cmd" || pasteModifier("linux") != "ctrl" || pasteModifier("windows") != "ctrl" {
		t.Error("unexpected paste modifiers")
	}
}
