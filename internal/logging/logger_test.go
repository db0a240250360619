// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"ERROR":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}

	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTestLoggerOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.Info().Str("player", "Ash").Msg("Player joined")

	out := buf.String()
	if !strings.Contains(out, `"player":"Ash"`) {
		t.Errorf("expected structured field in output, got %s", out)
	}
	if !strings.Contains(out, "Player joined") {
		t.Errorf("expected message in output, got %s", out)
	}
}

func TestSlogAdapter(t *testing.T) {
	t.Parallel()

	t.Run("levels and attrs", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
		slogger := slog.New(handler)

		slogger.Warn("service restarting", "service", "presence-poller", "attempts", int64(3))

		out := buf.String()
		if !strings.Contains(out, `"level":"warn"`) {
			t.Errorf("expected warn level, got %s", out)
		}
		if !strings.Contains(out, `"service":"presence-poller"`) {
			t.Errorf("expected service attr, got %s", out)
		}
		if !strings.Contains(out, `"attempts":3`) {
			t.Errorf("expected attempts attr, got %s", out)
		}
	})

	t.Run("groups prefix keys", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
		slogger := slog.New(handler).WithGroup("supervisor")

		slogger.Info("started", "tree", "root")

		if !strings.Contains(buf.String(), `"supervisor.tree":"root"`) {
			t.Errorf("expected grouped key, got %s", buf.String())
		}
	})

	t.Run("nested groups render outermost first", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
		slogger := slog.New(handler).WithGroup("supervisor").WithGroup("tree")

		slogger.Info("started", "layer", "monitoring")

		if !strings.Contains(buf.String(), `"supervisor.tree.layer":"monitoring"`) {
			t.Errorf("expected outermost-first key, got %s", buf.String())
		}
	})

	t.Run("with attrs carries over", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewSlogHandlerWithLogger(NewTestLogger(&buf))
		slogger := slog.New(handler).With("component", "backup")

		slogger.Info("archive created")

		if !strings.Contains(buf.String(), `"component":"backup"`) {
			t.Errorf("expected preset attr, got %s", buf.String())
		}
	})
}
