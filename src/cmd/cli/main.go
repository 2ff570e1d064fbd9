// Command screenocr-cli runs OCR over image files without the GUI: one
// file with --file or a whole set with --batch. Batch processing is
// strictly sequential and Ctrl-C is advisory, taking effect after the
// in-flight file finishes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screenocr/src/config"
	"screenocr/src/engine"
	"screenocr/src/worker"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

type cliOptions struct {
	filePath     string
	batchPattern string
	language     string
	engineKind   string
	jsonOutput   bool
	outDir       string
	verbose      bool
	apiKeyPath   string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(os.Args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screenocr-cli",
		Short:         "Run OCR on image files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.filePath == "" && opts.batchPattern == "" {
				return fmt.Errorf("either --file or --batch is required")
			}
			if opts.filePath != "" && opts.batchPattern != "" {
				return fmt.Errorf("--file and --batch are mutually exclusive")
			}
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to one image file")
	cmd.Flags().StringVar(&opts.batchPattern, "batch", "", "Directory or glob of image files to process in order")
	cmd.Flags().StringVar(&opts.language, "lang", "en", "Recognition language selector")
	cmd.Flags().StringVar(&opts.engineKind, "engine", engine.KindTesseract, "OCR engine: tesseract, paddle or vision")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output lines with confidence and polygons as JSON")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Write per-file .txt results into this directory")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to the vision API key file (highest precedence)")

	return cmd
}

// fileOutput is the JSON record emitted per processed file.
type fileOutput struct {
	Source   string         `json:"source"`
	Duration float64        `json:"duration_seconds"`
	Error    string         `json:"error,omitempty"`
	Result   *engine.Result `json:"result,omitempty"`
}

func runWithOptions(opts cliOptions) error {
	// Keep stdout clean for results; logs go to stderr only with -v.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Kind:      opts.engineKind,
		Language:  opts.language,
		Endpoint:  cfg.PaddleEndpoint,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Providers: cfg.Providers,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	log.Printf("Engine %s ready (language %s)", eng.Name(), opts.language)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if opts.filePath != "" {
		return processSingle(ctx, eng, opts)
	}
	return processBatch(ctx, eng, opts)
}

func processSingle(ctx context.Context, eng engine.Engine, opts cliOptions) error {
	out := processFile(ctx, eng, opts, opts.filePath)
	if out.Error != "" {
		return fmt.Errorf("%s: %s", out.Source, out.Error)
	}

	if opts.jsonOutput {
		return encodeJSON(os.Stdout, out)
	}
	if opts.outDir != "" {
		return writeTextResult(opts.outDir, out)
	}
	fmt.Print(out.Result.Text)
	return nil
}

func processBatch(ctx context.Context, eng engine.Engine, opts cliOptions) error {
	paths, err := expandBatch(opts.batchPattern)
	if err != nil {
		return err
	}
	log.Printf("Batch: %d files", len(paths))

	batch := worker.NewBatch()
	go func() {
		<-ctx.Done()
		batch.Stop()
	}()

	var outputs []fileOutput
	failed := 0
	runErr := batch.Run(ctx, paths, func(jc context.Context, path string) error {
		out := processFile(jc, eng, opts, path)
		outputs = append(outputs, out)
		if out.Error != "" {
			return fmt.Errorf("%s", out.Error)
		}
		if opts.outDir != "" {
			return writeTextResult(opts.outDir, out)
		}
		if !opts.jsonOutput {
			fmt.Printf("==> %s\n%s\n", out.Source, out.Result.Text)
		}
		return nil
	}, func(index int, path string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			return
		}
		log.Printf("Processed %d/%d: %s", index+1, len(paths), path)
	})

	if opts.jsonOutput {
		if err := encodeJSON(os.Stdout, outputs); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("batch ended early after %d of %d files: %w", len(outputs), len(paths), runErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// processFile validates one input and recognizes it. Errors land in the
// returned record so batch runs keep going.
func processFile(ctx context.Context, eng engine.Engine, opts cliOptions, path string) fileOutput {
	out := fileOutput{Source: path}

	info, err := os.Stat(path)
	if err != nil {
		out.Error = fmt.Sprintf("read image: %v", err)
		return out
	}
	if info.Size() > maxFileSize {
		out.Error = fmt.Sprintf("input exceeds maximum size of %d MB", maxFileSizeMB)
		return out
	}

	started := time.Now()
	res, err := eng.Recognize(ctx, engine.Request{Path: path, Language: opts.language})
	out.Duration = time.Since(started).Seconds()
	if err != nil {
		out.Error = err.Error()
		return out
	}

	log.Printf("Recognized %s: %d chars in %.2fs", path, len(res.Text), out.Duration)
	out.Result = res
	return out
}

// expandBatch resolves a directory or glob into a sorted list of image
// files.
func expandBatch(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		entries, err := os.ReadDir(pattern)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		var paths []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				paths = append(paths, filepath.Join(pattern, e.Name()))
			}
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no image files in directory %s", pattern)
		}
		sort.Strings(paths)
		return paths, nil
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad batch pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(paths)
	return paths, nil
}

func outPath(dir, source string) string {
	base := filepath.Base(source)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
}

func writeTextResult(dir string, out fileOutput) error {
	path := outPath(dir, out.Source)
	if err := os.WriteFile(path, []byte(out.Result.Text), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	log.Printf("Wrote %s", path)
	return nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	return nil
}
