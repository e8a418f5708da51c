package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "text format includes key values",
			cfg:  Config{Level: slog.LevelDebug},
			want: []string{"retrieval done", "tenant=demo"},
		},
		{
			name: "json format includes msg field",
			cfg:  Config{Level: slog.LevelInfo, JSON: true},
			want: []string{`"msg":"retrieval done"`, `"tenant":"demo"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.cfg)
			logger.Info("retrieval done", "tenant", "demo")

			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	logger.Warn("loud enough")

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Errorf("levels below Warn should be filtered, got:\n%s", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Errorf("Warn output missing, got:\n%s", out)
	}
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.With("component", "chunker").Info("split complete")

	if !strings.Contains(buf.String(), "component=chunker") {
		t.Errorf("expected component attribute, got:\n%s", buf.String())
	}
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop() returned nil")
	}
	logger.Info("discarded")
	logger.Error("also discarded")
}
