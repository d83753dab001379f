package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithEventType(context.Background(), "CLIENT_CREATED")
	ctx = logg.WithAggregateID(ctx, "C1")
	logg.Info(ctx, "routed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["event_type"] != "CLIENT_CREATED" {
		t.Fatalf("missing event_type field: %v", entry)
	}
	if entry["aggregate_id"] != "C1" {
		t.Fatalf("missing aggregate_id field: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("missing service field: %v", entry)
	}
}

func TestWarnRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: &buf})

	logg.Warn(context.Background(), "suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected warn below error level to be dropped, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("WARN"); got != zerolog.WarnLevel {
		t.Fatalf("ParseLevel(WARN) = %v", got)
	}
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("ParseLevel fallback = %v", got)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "boom", nil)
	if !strings.Contains(buf.String(), "stack") {
		t.Fatalf("expected stack field in error output: %s", buf.String())
	}
}
