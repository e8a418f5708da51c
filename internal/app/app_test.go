package app

import (
	"context"
	"errors"
	"testing"

	"github.com/docent-ai/docent/internal/config"
)

// ============================================================================
// App.Close() Tests
// ============================================================================

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name        string
		setupApp    func() *App
		expectError bool
	}{
		{
			name: "close with cancel function",
			setupApp: func() *App {
				ctx, cancel := context.WithCancel(context.Background())
				return &App{
					ctx:    ctx,
					cancel: cancel,
					Pool:   nil, // a mock pgxpool panics on Close
				}
			},
			expectError: false,
		},
		{
			name: "close with nil cancel function",
			setupApp: func() *App {
				return &App{
					ctx:    context.Background(),
					cancel: nil,
					Pool:   nil,
				}
			},
			expectError: false,
		},
		{
			name: "close minimal app",
			setupApp: func() *App {
				return &App{}
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := tt.setupApp()
			err := app.Close()

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			// Verify context was cancelled if a cancel function existed
			if app.cancel != nil && app.ctx != nil {
				select {
				case <-app.ctx.Done():
					// Context was properly cancelled
				default:
					t.Error("context was not cancelled")
				}
			}
		})
	}
}

func TestApp_Close_OtelShutdownRunsLast(t *testing.T) {
	var order []string

	ctx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	app := &App{
		ctx:          ctx,
		cancel:       func() { order = append(order, "cancel") },
		otelShutdown: func() { order = append(order, "otel") },
	}

	if err := app.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(order))
	}
	if order[0] != "cancel" {
		t.Errorf("expected cancel first, got %s", order[0])
	}
	if order[1] != "otel" {
		t.Errorf("expected otel shutdown last, got %s", order[1])
	}
}

// ============================================================================
// Nil Safety Tests
// ============================================================================

func TestApp_NilSafety(t *testing.T) {
	tests := []struct {
		name string
		app  *App
	}{
		{
			name: "close nil app fields",
			app:  &App{},
		},
		{
			name: "close with only ctx",
			app: &App{
				ctx: context.Background(),
			},
		},
		{
			name: "close with only cancel",
			app: &App{
				cancel: func() {},
			},
		},
		{
			name: "close with only otel shutdown",
			app: &App{
				otelShutdown: func() {},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should not panic
			if err := tt.app.Close(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// ============================================================================
// Provider Selection Tests
// ============================================================================

func TestNeedsGenkit(t *testing.T) {
	tests := []struct {
		name       string
		embedding  string
		generation string
		want       bool
	}{
		{"cloud embedding", config.ProviderCloud, config.ProviderStub, true},
		{"cloud generation", config.ProviderStub, config.ProviderCloud, true},
		{"both cloud", config.ProviderCloud, config.ProviderCloud, true},
		{"both stub", config.ProviderStub, config.ProviderStub, false},
		{"both local", config.ProviderLocal, config.ProviderLocal, false},
		{"local and stub", config.ProviderLocal, config.ProviderStub, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Embedding:  config.EmbeddingConfig{Provider: tt.embedding},
				Generation: config.GenerationConfig{Provider: tt.generation},
			}
			if got := needsGenkit(cfg); got != tt.want {
				t.Errorf("needsGenkit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsOllama(t *testing.T) {
	tests := []struct {
		name       string
		embedding  string
		generation string
		want       bool
	}{
		{"local embedding", config.ProviderLocal, config.ProviderStub, true},
		{"local generation", config.ProviderStub, config.ProviderLocal, true},
		{"both local", config.ProviderLocal, config.ProviderLocal, true},
		{"both stub", config.ProviderStub, config.ProviderStub, false},
		{"both cloud", config.ProviderCloud, config.ProviderCloud, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Embedding:  config.EmbeddingConfig{Provider: tt.embedding},
				Generation: config.GenerationConfig{Provider: tt.generation},
			}
			if got := needsOllama(cfg); got != tt.want {
				t.Errorf("needsOllama() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Setup Validation Tests
// ============================================================================

func TestSetup_NilConfig(t *testing.T) {
	app, err := Setup(context.Background(), nil, nil)
	if app != nil {
		t.Error("expected nil app on error")
	}
	if !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}
