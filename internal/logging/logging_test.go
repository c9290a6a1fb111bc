package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "harness")).Info(context.Background(), "rate complete",
		Float64("failure_rate", 0.1),
		Int("messages", 20),
		Bool("ok", true),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "rate complete" || rec["component"] != "harness" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec["failure_rate"] != 0.1 || rec["messages"] != float64(20) || rec["ok"] != true {
		t.Fatalf("unexpected typed fields: %#v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed: %q", out)
	}
}

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected a generated run id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || RunIDFromContext(ctx2) != id {
		t.Fatalf("run id changed: %q -> %q", id, id2)
	}

	var buf bytes.Buffer
	_, log := WithRunLogger(ContextWithRunID(context.Background(), "run-42"), New(Config{Format: "json", Output: &buf}))
	log.Info(context.Background(), "hello")
	if !strings.Contains(buf.String(), `"run_id":"run-42"`) {
		t.Fatalf("run logger missing run_id: %q", buf.String())
	}
}

func TestNoopLogger(t *testing.T) {
	log := Noop().With(String("a", "b"))
	log.Error(context.Background(), "dropped")
	if _, l := WithRunLogger(context.Background(), nil); l == nil {
		t.Fatalf("WithRunLogger(nil) returned nil logger")
	}
}
