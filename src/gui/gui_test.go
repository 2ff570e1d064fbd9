package gui

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"os"
	"runtime"
	"strings"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/disintegration/imaging"

	"screenocr/src/engine"
	"screenocr/src/history"
	"screenocr/src/settings"
)

func TestComboShortcut(t *testing.T) {
	cases := []struct {
		combo string
		key   fyne.KeyName
		mod   fyne.KeyModifier
		ok    bool
	}{
		{"ctrl+c", "C", fyne.KeyModifierControl, true},
		{"ctrl+shift+s", "S", fyne.KeyModifierControl | fyne.KeyModifierShift, true},
		{"alt+f4", "F4", fyne.KeyModifierAlt, true},
		{"win+7", "7", fyne.KeyModifierSuper, true},
		{"ctrl+enter", fyne.KeyReturn, fyne.KeyModifierControl, true},
		{"", "", 0, false},
		{"ctrl+", "", 0, false},
		{"ctrl+bogus", "", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.combo, func(t *testing.T) {
			sc, ok := comboShortcut(tc.combo)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			custom, isCustom := sc.(*desktop.CustomShortcut)
			if !isCustom {
				t.Fatalf("expected a custom shortcut, got %T", sc)
			}
			if custom.KeyName != tc.key {
				t.Errorf("expected key %q, got %q", tc.key, custom.KeyName)
			}
			if custom.Modifier != tc.mod {
				t.Errorf("expected modifier %v, got %v", tc.mod, custom.Modifier)
			}
		})
	}
}

func TestFyneKeyNameRejectsUnknown(t *testing.T) {
	for _, key := range []string{"", "f13", "ctrl", "hyper"} {
		if _, ok := fyneKeyName(key); ok {
			t.Errorf("expected %q to be rejected", key)
		}
	}
}

func TestListLine(t *testing.T) {
	rec := history.Record{Timestamp: "2026-01-02 15:04:05", Text: "first line\nsecond line"}
	line := listLine(rec)
	if !strings.HasPrefix(line, rec.Timestamp) {
		t.Errorf("expected timestamp prefix, got %q", line)
	}
	if strings.Contains(line, "second") {
		t.Errorf("expected only the first line, got %q", line)
	}

	long := history.Record{Timestamp: "t", Text: strings.Repeat("x", 200)}
	if got := listLine(long); !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got)
	}
}

func TestDecodeThumbnailRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 16))
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	enc := base64.StdEncoding.EncodeToString(buf.Bytes())

	got := decodeThumbnail(enc)
	if got == nil {
		t.Fatalf("expected decoded thumbnail")
	}
	if got.Bounds().Dx() != 20 || got.Bounds().Dy() != 16 {
		t.Errorf("expected 20x16, got %v", got.Bounds())
	}
}

func TestDecodeThumbnailToleratesGarbage(t *testing.T) {
	if decodeThumbnail("") != nil {
		t.Errorf("expected nil for empty input")
	}
	if decodeThumbnail("not base64 at all!") != nil {
		t.Errorf("expected nil for invalid base64")
	}
	if decodeThumbnail(base64.StdEncoding.EncodeToString([]byte("not an image"))) != nil {
		t.Errorf("expected nil for non-image payload")
	}
}

func TestConfidenceText(t *testing.T) {
	if got := confidenceText(nil); got != "" {
		t.Errorf("expected empty for nil result, got %q", got)
	}
	if got := confidenceText(&engine.Result{Text: "x"}); got != "" {
		t.Errorf("expected empty without confidence, got %q", got)
	}
	got := confidenceText(&engine.Result{AvgConfidence: 0.873})
	if got != "Avg confidence: 87.3%" {
		t.Errorf("unexpected confidence text %q", got)
	}
}

func TestSettingsFormRoundTrip(t *testing.T) {
	_ = test.NewApp()
	f := newSettingsForm()
	f.load(settings.Defaults())

	if f.hotkey.Text != "ctrl+shift+o" {
		t.Fatalf("expected defaults loaded, got hotkey %q", f.hotkey.Text)
	}

	f.hotkey.SetText("ctrl+shift+x")
	f.maxRecords.SetText("250")
	f.autoCopy.SetChecked(false)
	f.theme.SetSelected("light")

	next, err := f.collect(settings.Defaults())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if next.Hotkey != "ctrl+shift+x" {
		t.Errorf("expected edited hotkey, got %q", next.Hotkey)
	}
	if next.HistoryMaxRecords != 250 {
		t.Errorf("expected 250 records, got %d", next.HistoryMaxRecords)
	}
	if next.AutoCopy {
		t.Errorf("expected auto copy off")
	}
	if next.Theme != "light" {
		t.Errorf("expected light theme, got %q", next.Theme)
	}
	if err := next.Validate(); err != nil {
		t.Errorf("expected collected settings to validate, got %v", err)
	}
}

func TestSettingsFormRejectsBadHistorySize(t *testing.T) {
	_ = test.NewApp()
	f := newSettingsForm()
	f.load(settings.Defaults())

	for _, bad := range []string{"", "0", "-3", "many"} {
		f.maxRecords.SetText(bad)
		if _, err := f.collect(settings.Defaults()); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestThemeVariants(t *testing.T) {
	for _, setting := range []string{"dark", "light", "system"} {
		th := newTheme(setting)
		if th == nil {
			t.Fatalf("expected a theme for %q", setting)
		}
	}
	if !newTheme("dark").forced {
		t.Errorf("expected dark to force its variant")
	}
	if newTheme("system").forced {
		t.Errorf("expected system to follow the OS variant")
	}
}

func TestInteractiveSelection(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("interactive region selection is windows-only")
	}
	if os.Getenv("SCREENOCR_INTERACTIVE_TESTS") != "1" {
		t.Skip("set SCREENOCR_INTERACTIVE_TESTS=1 to run the interactive selection test")
	}

	cap, cancelled, err := NewSelector().Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if cancelled {
		t.Skip("selection cancelled by the tester")
	}
	if cap.Region.Width == 0 || cap.Region.Height == 0 {
		t.Error("expected a non-empty region")
	}
	if cap.Image == nil {
		t.Error("expected the crop from the frozen surface")
	}
}
