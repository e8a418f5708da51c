package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/retrieval"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func stubGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{Provider: config.ProviderStub}
}

func cloudGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{Provider: config.ProviderCloud, Model: "gemini-2.5-flash"}
}

type fakeGenerator struct {
	calls int
	fn    func(call int) (string, error)
}

func (f *fakeGenerator) Generate(context.Context, Prompt) (string, error) {
	f.calls++
	return f.fn(f.calls)
}

func (f *fakeGenerator) Kind() string { return "cloud" }

func fixtureResults() (a, b uuid.UUID, results []retrieval.Result) {
	a, b = uuid.New(), uuid.New()
	results = []retrieval.Result{
		result(a, "Retention Strategy Q3", "Fix bug X and raise NPS by 5 points.", 0.9),
		result(a, "Retention Strategy Q3", "Ship onboarding improvements.", 0.8),
		result(b, "Support Playbook", "Escalate churn risks within a day.", 0.7),
	}
	return a, b, results
}

func TestAnswer_RequiresQuestion(t *testing.T) {
	t.Parallel()

	o := New(Config{Logger: log.NewNop()})
	if _, err := o.Answer(context.Background(), Request{Question: "  "}); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("got %v, want ErrEmptyQuestion", err)
	}
}

func TestAnswer_StubMode(t *testing.T) {
	t.Parallel()

	srcA, srcB, results := fixtureResults()
	o := New(Config{Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "How do we improve retention?", Results: results})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Provider != KindStub {
		t.Errorf("provider = %q, want %q", got.Provider, KindStub)
	}
	if got.Degraded {
		t.Error("configured stub mode must not report degradation")
	}
	if !strings.Contains(got.Text, "Fix bug X") {
		t.Errorf("stub answer should quote the top snippet, got %q", got.Text)
	}
	if len(got.CitedSourceIDs) != 2 || got.CitedSourceIDs[0] != srcA || got.CitedSourceIDs[1] != srcB {
		t.Errorf("cited sources = %v, want deduplicated [%s %s]", got.CitedSourceIDs, srcA, srcB)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want top hit's 0.9", got.Confidence)
	}
}

func TestAnswer_StubModeWithoutHits(t *testing.T) {
	t.Parallel()

	o := New(Config{Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "Anything?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Text != noInformationMessage {
		t.Errorf("text = %q, want %q", got.Text, noInformationMessage)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if len(got.CitedSourceIDs) != 0 {
		t.Errorf("cited sources = %v, want none", got.CitedSourceIDs)
	}
}

func TestAnswer_GeneratorSuccess(t *testing.T) {
	t.Parallel()

	_, _, results := fixtureResults()
	gen := &fakeGenerator{fn: func(int) (string, error) { return "Raise NPS by fixing bug X.", nil }}
	o := New(Config{Generator: gen, Retry: fastRetryConfig(), Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "How?", Results: results})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Text != "Raise NPS by fixing bug X." {
		t.Errorf("text = %q", got.Text)
	}
	if got.Provider != "cloud" || got.Degraded {
		t.Errorf("provider = %q degraded = %v, want cloud/false", got.Provider, got.Degraded)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestAnswer_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{fn: func(call int) (string, error) {
		if call < 3 {
			return "", errors.New("status 503: overloaded")
		}
		return "Recovered.", nil
	}}
	o := New(Config{Generator: gen, Retry: fastRetryConfig(), Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "How?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Text != "Recovered." || got.Degraded {
		t.Errorf("got %+v, want recovered undegraded answer", got)
	}
	if gen.calls != 3 {
		t.Errorf("generator called %d times, want 3", gen.calls)
	}
}

func TestAnswer_FallbackAfterExhaustion(t *testing.T) {
	t.Parallel()

	_, _, results := fixtureResults()
	gen := &fakeGenerator{fn: func(int) (string, error) { return "", errors.New("status 503: overloaded") }}
	o := New(Config{Generator: gen, StubFallback: true, Retry: fastRetryConfig(), Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "How?", Results: results})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !got.Degraded {
		t.Error("fallback answer must be marked degraded")
	}
	if got.Provider != KindStub {
		t.Errorf("provider = %q, want %q", got.Provider, KindStub)
	}
	if !strings.Contains(got.Text, "Fix bug X") {
		t.Errorf("fallback should quote snippets, got %q", got.Text)
	}
	if gen.calls != 3 {
		t.Errorf("generator called %d times, want 3", gen.calls)
	}
}

func TestAnswer_FailureWithoutFallback(t *testing.T) {
	t.Parallel()

	_, _, results := fixtureResults()
	gen := &fakeGenerator{fn: func(int) (string, error) { return "", errors.New("status 503: overloaded") }}
	o := New(Config{Generator: gen, Retry: fastRetryConfig(), Logger: log.NewNop()})

	_, err := o.Answer(context.Background(), Request{Question: "How?", Results: results})
	var failed *GenerationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %v, want *GenerationFailedError", err)
	}
	if failed.Provider != "cloud" {
		t.Errorf("failed.Provider = %q, want cloud", failed.Provider)
	}
	if len(failed.Results) != 3 {
		t.Errorf("failure carries %d results, want 3", len(failed.Results))
	}
}

func TestAnswer_NonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{fn: func(int) (string, error) { return "", errors.New("invalid api key") }}
	o := New(Config{Generator: gen, StubFallback: true, Retry: fastRetryConfig(), Logger: log.NewNop()})

	got, err := o.Answer(context.Background(), Request{Question: "How?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !got.Degraded {
		t.Error("answer should be degraded")
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestAnswer_DeadBudgetIsNotDegradation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{fn: func(int) (string, error) {
		cancel()
		return "", errors.New("context canceled")
	}}
	o := New(Config{Generator: gen, StubFallback: true, Retry: fastRetryConfig(), Logger: log.NewNop()})

	_, err := o.Answer(ctx, Request{Question: "How?"})
	var failed *GenerationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %v, want *GenerationFailedError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should carry the context cause, got %v", err)
	}
}

func TestAnswer_BreakerShortCircuits(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{fn: func(int) (string, error) { return "", errors.New("status 503: overloaded") }}
	o := New(Config{
		Generator:    gen,
		StubFallback: true,
		Retry:        RetryConfig{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Breaker:      BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute},
		Logger:       log.NewNop(),
	})

	if _, err := o.Answer(context.Background(), Request{Question: "First?"}); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	callsAfterFirst := gen.calls

	got, err := o.Answer(context.Background(), Request{Question: "Second?"})
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if gen.calls != callsAfterFirst {
		t.Errorf("open breaker still reached the backend (%d calls, had %d)", gen.calls, callsAfterFirst)
	}
	if !got.Degraded {
		t.Error("short-circuited answer should be degraded")
	}
}

func TestRetryableGeneration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: errors.New("429 too many requests"), want: true},
		{name: "quota", err: errors.New("quota exceeded for project"), want: true},
		{name: "server error", err: errors.New("status 502: bad gateway"), want: true},
		{name: "timeout", err: errors.New("request timeout"), want: true},
		{name: "attempt deadline", err: errors.New("context deadline exceeded"), want: true},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "auth failure", err: errors.New("invalid api key"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := retryableGeneration(tt.err); got != tt.want {
				t.Errorf("retryableGeneration(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewGeneratorFromConfig_StubAndUnknown(t *testing.T) {
	t.Parallel()

	gen, err := NewGeneratorFromConfig(stubGenerationConfig(), Deps{})
	if err != nil {
		t.Fatalf("stub config: %v", err)
	}
	if gen != nil {
		t.Errorf("stub config should yield a nil generator, got %T", gen)
	}

	ragOnly := cloudGenerationConfig()
	ragOnly.RAGOnly = true
	gen, err = NewGeneratorFromConfig(ragOnly, Deps{})
	if err != nil {
		t.Fatalf("rag_only config: %v", err)
	}
	if gen != nil {
		t.Errorf("rag_only should force the nil generator, got %T", gen)
	}

	unknown := cloudGenerationConfig()
	unknown.Provider = "openai"
	if _, err := NewGeneratorFromConfig(unknown, Deps{}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("got %v, want ErrUnknownProvider", err)
	}
}
