package runtimeinit

import (
	"context"
	"errors"
	"testing"

	"screenocr/src/config"
	"screenocr/src/engine"
	"screenocr/src/settings"
)

func paddleSettings() settings.Settings {
	s := settings.Defaults()
	s.OCREngine = engine.KindPaddle
	return s
}

func TestResolveEngineUnknownKind(t *testing.T) {
	rt := &Runtime{Config: &config.Config{}}
	s := settings.Defaults()
	s.OCREngine = "carrier-pigeon"

	if err := rt.resolveEngine(s); err == nil {
		t.Fatal("Expected error for unknown engine kind")
	}
	if rt.eng != nil {
		t.Fatal("Expected no adapter after failed resolution")
	}
}

func TestResolveEngineKeepsAdapterWhenUnchanged(t *testing.T) {
	rt := &Runtime{Config: &config.Config{PaddleEndpoint: "http://127.0.0.1:9", OCRDeadlineSec: 20}}
	s := paddleSettings()

	if err := rt.resolveEngine(s); err != nil {
		t.Fatalf("resolveEngine failed: %v", err)
	}
	first := rt.eng
	if first == nil {
		t.Fatal("Expected an adapter")
	}

	if err := rt.resolveEngine(s); err != nil {
		t.Fatalf("resolveEngine failed: %v", err)
	}
	if rt.eng != first {
		t.Fatal("Expected the same adapter for unchanged settings")
	}
}

func TestResolveEngineSwapsOnLanguageChange(t *testing.T) {
	rt := &Runtime{Config: &config.Config{PaddleEndpoint: "http://127.0.0.1:9"}}
	s := paddleSettings()

	if err := rt.resolveEngine(s); err != nil {
		t.Fatalf("resolveEngine failed: %v", err)
	}
	first := rt.eng

	s.OCRLanguage = "ch"
	if err := rt.resolveEngine(s); err != nil {
		t.Fatalf("resolveEngine failed: %v", err)
	}
	if rt.eng == first {
		t.Fatal("Expected a new adapter after the language changed")
	}
}

func TestRecognizeSurfacesConstructionError(t *testing.T) {
	rt := &Runtime{
		Config:   &config.Config{},
		Settings: settings.NewStore(t.TempDir() + "/settings.json"),
	}
	s := settings.Defaults()
	s.OCREngine = engine.KindVision

	if err := rt.resolveEngine(s); err == nil {
		t.Fatal("Expected vision without an API key to fail")
	}

	_, err := rt.Recognize(context.Background(), "whatever.png")
	if err == nil {
		t.Fatal("Expected Recognize to surface the construction error")
	}
	var unavail *engine.UnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("Expected UnavailableError, got %v", err)
	}
}
