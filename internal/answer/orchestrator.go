package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/memory"
	"github.com/docent-ai/docent/internal/retrieval"
)

// ErrEmptyQuestion indicates a generation request without a question.
var ErrEmptyQuestion = errors.New("question is required")

// Config assembles an Orchestrator. A nil Generator selects stub mode.
type Config struct {
	Generator    Generator
	StubFallback bool          // degrade to the extractive answer when the backend fails
	Retry        RetryConfig   // zero value takes DefaultRetryConfig
	Breaker      BreakerConfig // zero values take DefaultBreakerConfig
	CallTimeout  time.Duration // per-attempt budget; 0 relies on the caller's context
	Logger       *slog.Logger
}

// Request carries one question with its retrieved context and the
// session history (most recent turn first).
type Request struct {
	Question string
	Results  []retrieval.Result
	History  []memory.Turn
}

// Orchestrator routes questions to the configured generation backend and
// owns its failure handling.
//
// Orchestrator is safe for concurrent use by multiple goroutines.
type Orchestrator struct {
	generator    Generator
	breaker      *Breaker
	retry        RetryConfig
	stubFallback bool
	callTimeout  time.Duration
	logger       *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Orchestrator{
		generator:    cfg.Generator,
		breaker:      NewBreaker(cfg.Breaker),
		retry:        cfg.Retry,
		stubFallback: cfg.StubFallback,
		callTimeout:  cfg.CallTimeout,
		logger:       cfg.Logger,
	}
}

// Answer produces the response for the question. Citations and
// confidence come from the retrieval results regardless of which backend
// writes the prose. In stub mode the top snippets are returned verbatim.
// When the backend fails, stub fallback (if enabled) serves the
// extractive answer marked Degraded; otherwise the caller receives a
// *GenerationFailedError with the results still attached.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Answer{}, ErrEmptyQuestion
	}

	base := Answer{
		CitedSourceIDs: CitedSources(req.Results),
		Confidence:     TopConfidence(req.Results),
	}

	if o.generator == nil {
		base.Text = Extractive(req.Results)
		base.Provider = KindStub
		return base, nil
	}

	if err := o.breaker.Allow(); err != nil {
		o.logger.Warn("generation rejected", "state", o.breaker.State().String())
		return o.degrade(base, req, err)
	}

	text, err := o.generateWithRetry(ctx, BuildPrompt(req.Question, req.Results, req.History))
	switch {
	case err == nil:
		o.breaker.Success()
	case ctx.Err() != nil:
		// The request budget died, not the backend. Not a degradation
		// case: the caller decides what a timeout means.
		return Answer{}, &GenerationFailedError{Provider: o.generator.Kind(), Results: req.Results, Err: err}
	default:
		o.breaker.Failure()
		return o.degrade(base, req, err)
	}

	base.Text = text
	base.Provider = o.generator.Kind()
	return base, nil
}

// degrade serves the extractive fallback, or surfaces the failure with
// the retrieved chunks attached when fallback is disabled.
func (o *Orchestrator) degrade(base Answer, req Request, cause error) (Answer, error) {
	if !o.stubFallback {
		return Answer{}, &GenerationFailedError{Provider: o.generator.Kind(), Results: req.Results, Err: cause}
	}

	o.logger.Warn("generation failed, serving extractive answer",
		"provider", o.generator.Kind(), "error", cause)
	base.Text = Extractive(req.Results)
	base.Provider = KindStub
	base.Degraded = true
	return base, nil
}

// CitedSources returns the distinct source ids in rank order.
func CitedSources(results []retrieval.Result) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(results))
	seen := make(map[uuid.UUID]struct{}, len(results))
	for _, r := range results {
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		ids = append(ids, r.SourceID)
	}
	return ids
}

// TopConfidence is the best hit's confidence, zero without hits.
func TopConfidence(results []retrieval.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Confidence
}
