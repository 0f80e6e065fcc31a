package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"tripcore/pkg/logging"
)

func TestNoopDiscards(t *testing.T) {
	l := logging.Noop()
	l.Debug("debug", "k", 1)
	l.Info("info")
	l.Warn("warn")
	l.Error("error", "err", "boom")
}

func TestSlogAdapterForwardsLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := logging.NewSlog(base)

	l.Debug("loading trip", "trip_id", "t1")
	l.Info("saved trip", "trip_id", "t1")
	l.Warn("recovered file", "trip_id", "t1")
	l.Error("write failed", "trip_id", "t1")

	out := buf.String()
	for _, want := range []string{"loading trip", "saved trip", "recovered file", "write failed", "trip_id=t1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogAdapterNilFallsBackToDefault(t *testing.T) {
	l := logging.NewSlog(nil)
	if l == nil {
		t.Fatalf("expected adapter for nil logger")
	}
	l.Debug("silent by default level")
}
