package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/log"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}, nil); !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("nil config: got %v, want ErrConfigNil", err)
	}
	if _, err := New(Deps{}, &config.Config{}); err == nil {
		t.Error("empty deps should fail")
	}
}

func TestIngest_InputValidation(t *testing.T) {
	t.Parallel()

	a := &Assistant{chunker: chunker.Default(), cfg: &config.Config{}, logger: log.NewNop()}

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{name: "missing tenant", req: IngestRequest{Title: "Doc", Text: "body"}},
		{name: "bad tenant", req: IngestRequest{TenantID: "9lives", Title: "Doc", Text: "body"}},
		{name: "missing title", req: IngestRequest{TenantID: "acme", Text: "body"}},
		{name: "blank title", req: IngestRequest{TenantID: "acme", Title: "   ", Text: "body"}},
		{name: "empty text", req: IngestRequest{TenantID: "acme", Title: "Doc", Text: "  \n "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := a.Ingest(context.Background(), tt.req); !errors.Is(err, ErrInput) {
				t.Errorf("got %v, want ErrInput", err)
			}
		})
	}
}

func TestQuery_InputValidation(t *testing.T) {
	t.Parallel()

	a := &Assistant{cfg: &config.Config{}, logger: log.NewNop()}

	tests := []struct {
		name string
		req  QueryRequest
	}{
		{name: "missing tenant", req: QueryRequest{Question: "How?"}},
		{name: "bad tenant", req: QueryRequest{TenantID: "-acme", Question: "How?"}},
		{name: "missing question", req: QueryRequest{TenantID: "acme"}},
		{name: "blank question", req: QueryRequest{TenantID: "acme", Question: " \t "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := a.Query(context.Background(), tt.req); !errors.Is(err, ErrInput) {
				t.Errorf("got %v, want ErrInput", err)
			}
		})
	}
}
