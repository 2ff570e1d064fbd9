package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"screenocr/src/hotkey"
)

// Settings is the persisted preference record. The JSON keys are stable
// so files written by older builds keep loading.
type Settings struct {
	OCRLanguage string `json:"ocr_language"`
	OCREngine   string `json:"ocr_engine"`

	Hotkey     string `json:"hotkey"`
	HotkeyCopy string `json:"hotkey_copy"`
	HotkeySave string `json:"hotkey_save"`
	HotkeyEdit string `json:"hotkey_edit"`

	Theme         string `json:"theme"`
	DefaultDevice string `json:"default_device"`

	AutoCopy         bool `json:"auto_copy"`
	ShowNotification bool `json:"show_notification"`
	MinimizeToTray   bool `json:"minimize_to_tray"`
	StartMinimized   bool `json:"start_minimized"`

	HistoryMaxRecords int  `json:"history_max_records"`
	HotkeyEnabled     bool `json:"hotkey_enabled"`

	// Document-mode recognition toggles, forwarded to the engine.
	DocUseTableRecognition   bool `json:"doc_use_table_recognition"`
	DocUseFormulaRecognition bool `json:"doc_use_formula_recognition"`
	DocUseSealRecognition    bool `json:"doc_use_seal_recognition"`
	DocUseChartRecognition   bool `json:"doc_use_chart_recognition"`
	DocUseDocOrientation     bool `json:"doc_use_doc_orientation"`
	DocUseDocUnwarping       bool `json:"doc_use_doc_unwarping"`
}

func Defaults() Settings {
	return Settings{
		OCRLanguage:            "en",
		OCREngine:              "tesseract",
		Hotkey:                 "ctrl+shift+o",
		HotkeyCopy:             "ctrl+c",
		HotkeySave:             "ctrl+s",
		HotkeyEdit:             "ctrl+e",
		Theme:                  "dark",
		DefaultDevice:          "cpu",
		AutoCopy:               true,
		ShowNotification:       true,
		MinimizeToTray:         true,
		StartMinimized:         false,
		HistoryMaxRecords:      500,
		HotkeyEnabled:          true,
		DocUseTableRecognition: true,
	}
}

// Bindings lists the named hotkeys in their fixed order, the order
// conflict reports use.
func (s Settings) Bindings() []hotkey.Binding {
	return []hotkey.Binding{
		{Name: "hotkey", Combo: s.Hotkey},
		{Name: "hotkey_copy", Combo: s.HotkeyCopy},
		{Name: "hotkey_save", Combo: s.HotkeySave},
		{Name: "hotkey_edit", Combo: s.HotkeyEdit},
	}
}

// Validate checks every hotkey against the binding grammar and the
// reserved list, then checks the set for duplicates. A failed Validate
// must keep the settings file untouched, so Store.Save runs it first.
func (s Settings) Validate() error {
	bindings := s.Bindings()
	for _, b := range bindings {
		if err := hotkey.Validate(b.Combo); err != nil {
			return fmt.Errorf("%s: %w", b.Name, err)
		}
	}
	if conflicts := hotkey.Conflicts(bindings); len(conflicts) > 0 {
		c := conflicts[0]
		return fmt.Errorf("hotkey conflict: %s and %s both use %q", c.First, c.Second, c.Combo)
	}
	return nil
}

// DocOptionsEnabled reports whether any document-mode toggle is on.
func (s Settings) DocOptionsEnabled() bool {
	return s.DocUseTableRecognition || s.DocUseFormulaRecognition ||
		s.DocUseSealRecognition || s.DocUseChartRecognition ||
		s.DocUseDocOrientation || s.DocUseDocUnwarping
}

// DefaultPath returns the settings location under the user config
// directory, e.g. %LOCALAPPDATA%\ScreenOCR\settings.json on Windows.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "ScreenOCR", "settings.json"), nil
}
