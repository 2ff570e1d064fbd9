package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screenocr/src/engine"
)

type fakeEngine struct {
	res *engine.Result
	err error
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Recognize(ctx context.Context, req engine.Request) (*engine.Result, error) {
	return f.res, f.err
}
func (f *fakeEngine) Close() error { return nil }

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--file", "a.png", "--lang", "ch", "--engine", "paddle", "--json", "--out", "/tmp/results", "-v"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.filePath != "a.png" {
		t.Fatalf("Expected filePath=a.png, got %q", opts.filePath)
	}
	if opts.language != "ch" {
		t.Fatalf("Expected language=ch, got %q", opts.language)
	}
	if opts.engineKind != "paddle" {
		t.Fatalf("Expected engineKind=paddle, got %q", opts.engineKind)
	}
	if !opts.jsonOutput || !opts.verbose {
		t.Fatal("Expected json and verbose to be set")
	}
	if opts.outDir != "/tmp/results" {
		t.Fatalf("Expected outDir=/tmp/results, got %q", opts.outDir)
	}
}

func TestRootCmdRequiresFileOrBatch(t *testing.T) {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Expected error without --file or --batch")
	}

	opts = &cliOptions{}
	cmd = newRootCmd(opts)
	cmd.SetArgs([]string{"--file", "a.png", "--batch", "dir"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Expected error when --file and --batch are combined")
	}
}

func TestExpandBatchDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt", "c.PNG"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("fixture write failed: %v", err)
		}
	}

	paths, err := expandBatch(dir)
	if err != nil {
		t.Fatalf("expandBatch failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 image files, got %d: %v", len(paths), paths)
	}
	for i := 1; i < len(paths); i++ {
		if paths[i-1] > paths[i] {
			t.Fatalf("Expected sorted order, got %v", paths)
		}
	}
	for _, p := range paths {
		if strings.HasSuffix(p, "notes.txt") {
			t.Fatalf("Non-image file included: %v", paths)
		}
	}
}

func TestExpandBatchGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.png", "two.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("fixture write failed: %v", err)
		}
	}

	paths, err := expandBatch(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatalf("expandBatch failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(paths))
	}
}

func TestExpandBatchEmpty(t *testing.T) {
	if _, err := expandBatch(filepath.Join(t.TempDir(), "*.png")); err == nil {
		t.Fatal("Expected error for an empty match")
	}
}

func TestProcessFileMissingInput(t *testing.T) {
	out := processFile(context.Background(), &fakeEngine{}, cliOptions{}, "/nonexistent/input.png")
	if out.Error == "" {
		t.Fatal("Expected an error for a missing input file")
	}
	if out.Result != nil {
		t.Fatal("Expected no result for a missing input file")
	}
}

func TestProcessFileSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	if err := os.WriteFile(path, make([]byte, maxFileSize+1), 0o644); err != nil {
		t.Fatalf("fixture write failed: %v", err)
	}

	out := processFile(context.Background(), &fakeEngine{}, cliOptions{}, path)
	if !strings.Contains(out.Error, "maximum size") {
		t.Fatalf("Expected size limit error, got %q", out.Error)
	}
}

func TestProcessFileSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("fixture write failed: %v", err)
	}

	eng := &fakeEngine{res: &engine.Result{Text: "hello"}}
	out := processFile(context.Background(), eng, cliOptions{}, path)
	if out.Error != "" {
		t.Fatalf("Unexpected error: %s", out.Error)
	}
	if out.Result.Text != "hello" {
		t.Fatalf("Expected text hello, got %q", out.Result.Text)
	}
}

func TestProcessFileEngineError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("fixture write failed: %v", err)
	}

	eng := &fakeEngine{err: errors.New("decode failed")}
	out := processFile(context.Background(), eng, cliOptions{}, path)
	if !strings.Contains(out.Error, "decode failed") {
		t.Fatalf("Expected engine error, got %q", out.Error)
	}
}

func TestOutPath(t *testing.T) {
	got := outPath("/results", "/captures/shot.final.png")
	want := filepath.Join("/results", "shot.final.txt")
	if got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}

func TestWriteTextResult(t *testing.T) {
	dir := t.TempDir()
	out := fileOutput{Source: "img.png", Result: &engine.Result{Text: "recognized"}}
	if err := writeTextResult(dir, out); err != nil {
		t.Fatalf("writeTextResult failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "img.txt"))
	if err != nil {
		t.Fatalf("result file missing: %v", err)
	}
	if string(data) != "recognized" {
		t.Fatalf("Expected recognized, got %q", data)
	}
}

func TestEncodeJSONShape(t *testing.T) {
	var buf bytes.Buffer
	out := fileOutput{
		Source:   "img.png",
		Duration: 1.5,
		Result: &engine.Result{
			Text:  "a\nb",
			Lines: []engine.Line{{Text: "a", Confidence: 0.9}, {Text: "b", Confidence: 0.8}},
		},
	}
	if err := encodeJSON(&buf, out); err != nil {
		t.Fatalf("encodeJSON failed: %v", err)
	}
	s := buf.String()
	for _, want := range []string{`"source": "img.png"`, `"duration_seconds": 1.5`, `"confidence": 0.9`} {
		if !strings.Contains(s, want) {
			t.Fatalf("JSON output missing %s:\n%s", want, s)
		}
	}
}
