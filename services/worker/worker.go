package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"sjsage522/listingwatcher/config"
	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/logger"
)

// Worker runs the scan of every enabled topic
type Worker struct {
	topics   []config.TopicConfig
	deps     internal.Dependencies
	logger   helpers.LoggerInterface
	schedule string

	// guards keeps two runs of the same topic from overlapping
	guards map[string]*sync.Mutex
}

// NewWorker creates a new worker. An empty schedule means a single pass.
func NewWorker(
	topics []config.TopicConfig,
	deps internal.Dependencies,
	logger helpers.LoggerInterface,
	schedule string,
) *Worker {
	guards := make(map[string]*sync.Mutex, len(topics))
	for _, t := range topics {
		guards[t.Topic] = &sync.Mutex{}
	}
	return &Worker{
		topics:   topics,
		deps:     deps,
		logger:   logger,
		schedule: schedule,
		guards:   guards,
	}
}

// Start runs one pass when no schedule is set. Otherwise it runs a pass on
// every cron tick until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	if w.schedule == "" {
		return w.RunOnce(ctx)
	}

	c := cron.New()
	_, err := c.AddFunc(w.schedule, func() {
		if err := w.RunOnce(ctx); err != nil {
			logger.ForWorker().Warn().Err(err).Msg("Scheduled pass finished with failures")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", w.schedule, err)
	}

	c.Start()
	w.logger.LogInfo("Scheduled scanning with %q", w.schedule)
	<-ctx.Done()

	// Wait for running passes to finish
	<-c.Stop().Done()
	return nil
}

// RunOnce scans every enabled topic in parallel under one run id and waits
// for all of them. One failing topic never stops the others. The returned
// error joins the failures of all topics.
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()
	results := w.runTopics(ctx, runID)

	if w.deps.Publisher != nil {
		if err := w.deps.Publisher.TrimStreams(ctx); err != nil {
			w.logger.LogError("StreamTrimming", err)
		}
	}

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	w.logger.LogInfo("Run %s scanned %d topics in %s, %d failed", runID, len(results), time.Since(start), len(errs))
	return errors.Join(errs...)
}

func (w *Worker) runTopics(ctx context.Context, runID string) []RunResult {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []RunResult
	)

	for _, t := range w.topics {
		if !t.Enabled() {
			w.logger.LogInfo("Skipping disabled topic %s", t.Topic)
			continue
		}

		wg.Add(1)
		go func(t config.TopicConfig) {
			defer wg.Done()

			guard := w.guards[t.Topic]
			if !guard.TryLock() {
				logger.ForTopic(t.Topic).Warn().Msg("Previous scan still running, skipping")
				return
			}
			defer guard.Unlock()

			res := w.runTopic(ctx, runID, t)
			if res.Err != nil {
				w.logger.LogError(t.Topic, res.Err)
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	return results
}

// runTopic turns a panicking runner into a failed result
func (w *Worker) runTopic(ctx context.Context, runID string, t config.TopicConfig) (res RunResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForTopic(t.Topic).Error().
				Str("run_id", runID).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic")
			res = RunResult{RunID: runID, Topic: t.Topic, Err: fmt.Errorf("topic %s panicked: %v", t.Topic, r)}
		}
	}()

	runner := NewRunner(t, crawler.ForTopic(t), w.deps)
	return runner.Run(ctx, runID)
}
