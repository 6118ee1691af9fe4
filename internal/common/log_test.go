package common

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestBuildLogEntryDerivesComponentFromPrefix(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "workflow: extraction fell back", 0)
	record.AddAttrs(slog.Int("run_id", 7), slog.Any("error", errors.New("boom")))

	entry := buildLogEntry(record)
	if entry.Component != "workflow" {
		t.Fatalf("expected workflow component, got %q", entry.Component)
	}
	if entry.Level != "warn" {
		t.Fatalf("unexpected level: %s", entry.Level)
	}
	if entry.Attributes["run_id"] != int64(7) {
		t.Fatalf("unexpected run_id attribute: %#v", entry.Attributes["run_id"])
	}
	if entry.Attributes["error"] != "boom" {
		t.Fatalf("expected error rendered as string, got %#v", entry.Attributes["error"])
	}
}

func TestBuildLogEntryPrefersExplicitComponent(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "request", 0)
	record.AddAttrs(slog.String("component", "api"))
	entry := buildLogEntry(record)
	if entry.Component != "api" {
		t.Fatalf("expected api component, got %q", entry.Component)
	}
	if len(entry.Attributes) != 0 {
		t.Fatalf("component should not be kept as an attribute: %#v", entry.Attributes)
	}
}

func TestFilterLogEntries(t *testing.T) {
	entries := []LogEntry{
		{Message: "api: one", Component: "api"},
		{Message: "llm: two", Component: "llm"},
		{Message: "api: three", Component: "api"},
		{Message: "api: four", Component: "API"},
	}
	got := FilterLogEntries(entries, "api", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Message != "api: three" || got[1].Message != "api: four" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if all := FilterLogEntries(entries, "", 0); len(all) != len(entries) {
		t.Fatalf("expected no filtering, got %d", len(all))
	}
}

func TestLogSinkKeepsNewestEntries(t *testing.T) {
	s := newLogSink(2)
	for _, msg := range []string{"a: 1", "a: 2", "a: 3"} {
		s.capture(slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0))
	}
	got := s.entries()
	if len(got) != 2 || got[0].Message != "a: 2" || got[1].Message != "a: 3" {
		t.Fatalf("unexpected history: %+v", got)
	}
}
