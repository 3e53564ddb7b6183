package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marklens/marklens/internal/batch"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
	"github.com/marklens/marklens/internal/export"
	"github.com/marklens/marklens/internal/llm/openai"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

func main() {
	// Parse CLI flags
	var (
		dir       = flag.String("dir", "", "directory of marksheet images to analyze (required)")
		out       = flag.String("out", "", "output file path (optional, defaults next to the input directory)")
		format    = flag.String("format", "xlsx", "output format: xlsx or pdf")
		selection = flag.String("selection", "aggregate", `record to export: "aggregate" or a result index`)
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *format != "xlsx" && *format != "pdf" {
		printError("Error: --format must be xlsx or pdf\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "class-report."+*format)
	}

	sel, err := entity.ParseSelection(*selection)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		printError("Error: OPENAI_API_KEY is required\n")
		os.Exit(1)
	}

	images, err := collectImages(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(images) == 0 {
		printError("Error: no marksheet images found in %s\n", *dir)
		os.Exit(1)
	}
	logger.Info("collected images", "dir", *dir, "count", len(images))

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	orchestrator := batch.NewOrchestrator(extractor,
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithExtractTimeout(cfg.Batch.ExtractTimeout),
		batch.WithLogger(logger),
	)

	outcome, err := orchestrator.Run(ctx, images)
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	record, err := sel.Resolve(outcome)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	exporter := export.NewService(logger)
	var data []byte
	switch *format {
	case "xlsx":
		data, err = exporter.ReportXLSX(record)
	case "pdf":
		data, err = exporter.ReportPDF(ctx, record, nil)
	}
	if err != nil {
		logger.Error("failed to build report", "format", *format, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch analysis complete",
		"images", outcome.Submitted,
		"succeeded", len(outcome.Results),
		"failed", outcome.FailureCount,
		"output_file", *out)

	fmt.Printf("Batch analysis complete!\n")
	fmt.Printf("- Images submitted: %d\n", outcome.Submitted)
	fmt.Printf("- Analyzed: %d\n", len(outcome.Results))
	fmt.Printf("- Failures: %d\n", outcome.FailureCount)
	fmt.Printf("- Output: %s\n", *out)
}

// collectImages reads every supported image in dir, sorted by filename so
// result order is stable across runs.
func collectImages(dir string) ([]batch.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	images := make([]batch.Image, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		images = append(images, batch.Image{Data: data, Filename: name})
	}
	return images, nil
}
