// Package batch fans one submission of marksheet images out to the
// extraction client and settles every attempt before reporting an outcome.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marklens/marklens/internal/aggregate"
	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
	"github.com/marklens/marklens/internal/llm"
)

// Image is one uploaded marksheet payload.
type Image struct {
	Data     []byte
	Filename string
}

// Orchestrator runs extraction for every image in a submission. Each call
// settles independently; one bad image never aborts its siblings. Only when
// every image fails does the submission itself fail.
type Orchestrator struct {
	extractor   llm.MarksheetExtractor
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency caps how many extraction calls run at once. Default is 4.
// The cap is a resource limit only; it introduces no ordering dependency
// between calls.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithExtractTimeout bounds a single extraction call. Default is 90s.
func WithExtractTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an Orchestrator around the given extractor.
func NewOrchestrator(extractor llm.MarksheetExtractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:   extractor,
		concurrency: 4,
		timeout:     90 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run extracts every image concurrently, waits for all attempts to settle,
// and partitions them into successes and a failure count. Successes keep the
// input order of their images. No partial state is visible before the whole
// batch settles.
//
// Returns common.ErrInvalidInput for an empty submission and
// common.ErrBatchFailed when zero images succeed. A mixed outcome is a
// success carrying a non-zero FailureCount.
func (o *Orchestrator) Run(ctx context.Context, images []Image) (*entity.BatchOutcome, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("batch: no images submitted: %w", common.ErrInvalidInput)
	}

	batchID := uuid.New()
	start := time.Now()
	o.logger.Info("batch.start",
		"batch_id", batchID.String(),
		"images", len(images),
		"concurrency", o.concurrency,
	)

	// One slot per image; slots are written by exactly one goroutine each,
	// so the fan-out needs no locking.
	type attempt struct {
		result entity.AnalysisResult
		err    error
	}
	attempts := make([]attempt, len(images))

	// Extraction calls carry the batch ID so extract.* log lines correlate
	// with batch.* lines.
	ctx = common.WithBatchID(ctx, batchID.String())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, img := range images {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			fields, _, err := o.extractor.ExtractMarksheet(callCtx, llm.ExtractRequest{
				Image:        img.Data,
				FilenameHint: img.Filename,
			})
			if err != nil {
				// Capture, never propagate: a failed image must not cancel
				// its siblings through the errgroup.
				attempts[i] = attempt{err: fmt.Errorf("image %q: %v: %w", img.Filename, err, common.ErrExtraction)}
				o.logger.Warn("batch.image_failed",
					"batch_id", batchID.String(),
					"index", i,
					"filename", img.Filename,
					"error", err,
				)
				return nil
			}
			attempts[i] = attempt{result: fields.ToAnalysisResult()}
			return nil
		})
	}
	// Every goroutine captures its own outcome and returns nil, so Wait
	// carries no error. Cancellation fails the in-flight calls, which are
	// then counted like any other extraction failure.
	_ = g.Wait()

	results := make([]entity.AnalysisResult, 0, len(images))
	failures := 0
	for _, a := range attempts {
		if a.err != nil {
			failures++
			continue
		}
		results = append(results, a.result)
	}

	if len(results) == 0 {
		o.logger.Error("batch.failed",
			"batch_id", batchID.String(),
			"images", len(images),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("batch %s: %d image(s), 0 extracted: %w", batchID, len(images), common.ErrBatchFailed)
	}

	agg, err := aggregate.BuildClassAverage(results)
	if err != nil {
		return nil, fmt.Errorf("batch %s: aggregate: %w", batchID, err)
	}

	o.logger.Info("batch.done",
		"batch_id", batchID.String(),
		"images", len(images),
		"succeeded", len(results),
		"failed", failures,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &entity.BatchOutcome{
		BatchID:      batchID,
		Results:      results,
		Aggregate:    agg,
		FailureCount: failures,
		Submitted:    len(images),
		CreatedAt:    time.Now().UTC(),
	}, nil
}
