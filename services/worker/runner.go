package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/listingwatcher/config"
	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/publisher"
)

// itemSeparator is placed between URLs in the new items message
const itemSeparator = "\n----------\n"

// State is a step of one topic scan
type State int

const (
	StateStarting State = iota
	StateFetching
	StateExtracting
	StateDiffing
	StateReporting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDiffing:
		return "diffing"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult is the outcome of one topic scan. Err is nil on success.
type RunResult struct {
	RunID    string
	Topic    string
	NewItems []string
	Err      error
}

// Runner scans one topic: fetch, extract, diff against the seen set, report.
// Every failure ends in a single best-effort failure notification.
type Runner struct {
	topic     config.TopicConfig
	extractor crawler.Extractor
	deps      internal.Dependencies
	log       *logger.Logger
	state     State
}

// NewRunner creates a runner for topic
func NewRunner(topic config.TopicConfig, extractor crawler.Extractor, deps internal.Dependencies) *Runner {
	return &Runner{
		topic:     topic,
		extractor: extractor,
		deps:      deps,
		log:       logger.ForTopic(topic.Topic),
	}
}

// State returns the state the runner is in, the final one after Run
func (r *Runner) State() State {
	return r.state
}

// Run executes the scan
func (r *Runner) Run(ctx context.Context, runID string) RunResult {
	result := RunResult{RunID: runID, Topic: r.topic.Topic}
	r.log = r.log.WithFields(logger.Fields{
		"run_id": runID,
		"url":    r.topic.URL,
	})

	r.transition(StateStarting)
	if err := r.deps.Notifier.Send(ctx, startMessage(r.topic)); err != nil {
		r.log.WithError(err).Warn().Msg("Failed to send scan started message")
	}

	newItems, err := r.scan(ctx, runID)
	if err != nil {
		return r.fail(ctx, result, err)
	}
	result.NewItems = newItems

	r.transition(StateReporting)
	if err := r.deps.Notifier.Send(ctx, reportMessage(newItems)); err != nil {
		return r.fail(ctx, result, err)
	}

	r.transition(StateDone)
	r.log.Info().Int("new_items", len(newItems)).Msg("Scan finished")
	return result
}

func (r *Runner) scan(ctx context.Context, runID string) ([]string, error) {
	r.transition(StateFetching)
	body, err := r.deps.Fetcher.Fetch(ctx, r.topic.URL)
	if err != nil {
		return nil, err
	}

	r.transition(StateExtracting)
	imageURLs, err := r.extractor.Extract(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	r.log.Debug().Int("images", len(imageURLs)).Msg("Extracted listing images")

	r.transition(StateDiffing)
	newItems, err := r.deps.Store.DiffAndSave(ctx, r.topic.Topic, imageURLs)
	if err != nil {
		return nil, err
	}
	if len(newItems) == 0 {
		return newItems, nil
	}

	// The new items are already saved, so a missing flag or event must not
	// turn into a failed scan that would hide them.
	if err := r.deps.Flag.Raise(); err != nil {
		r.log.WithError(err).Error().Msg("Failed to raise dirty flag")
	}
	if r.deps.Publisher != nil {
		event := publisher.ListingEvent{
			RunID:    runID,
			Topic:    r.topic.Topic,
			URL:      r.topic.URL,
			NewItems: newItems,
			FoundAt:  time.Now().UTC(),
		}
		if err := r.deps.Publisher.Publish(ctx, event); err != nil {
			logger.ForPublisher().Error().Err(err).Str("topic", r.topic.Topic).Msg("Failed to publish listing event")
		}
	}
	return newItems, nil
}

// fail reports err to the notification channel. A send failure here is only
// logged so that it cannot mask err.
func (r *Runner) fail(ctx context.Context, result RunResult, err error) RunResult {
	failedIn := r.state
	r.transition(StateFailed)
	result.Err = apperrors.WithTopic(err, r.topic.Topic)

	failLog := r.log.WithError(result.Err)
	failLog.Debug().Str("failed_in", failedIn.String()).Msg("Reporting failure")
	if serr := r.deps.Notifier.Send(ctx, failureMessage(r.topic.Topic, result.Err)); serr != nil {
		failLog.Warn().AnErr("send_error", serr).Msg("Failed to send scan failed message")
	}
	return result
}

func (r *Runner) transition(to State) {
	r.log.Debug().Str("from", r.state.String()).Str("to", to.String()).Msg("State transition")
	r.state = to
}

func startMessage(topic config.TopicConfig) string {
	return fmt.Sprintf("Starting scanning %s on link:\n%s", topic.Topic, topic.URL)
}

func reportMessage(newItems []string) string {
	if len(newItems) == 0 {
		return "No new items were added"
	}
	return fmt.Sprintf("%d new items:\n%s", len(newItems), strings.Join(newItems, itemSeparator))
}

func failureMessage(topic string, err error) string {
	msg := fmt.Sprintf("Scan workflow failed for %s... 😥", topic)
	if cause := apperrors.MessageOf(err); cause != "" {
		msg += "\nError: " + cause
	}
	return msg
}
