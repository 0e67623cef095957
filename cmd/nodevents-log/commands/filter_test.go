package commands

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nodevents/nodevents-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func TestFilterBySessionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, SessionID: "session-1", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "session-2", Category: log.CategoryMessage},
		{Timestamp: ts, SessionID: "session-1", Category: log.CategoryMessage},
	}

	path := createTestTraceFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	filter, err := FilterOptions{SessionID: "session-1"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunFilter(path, outPath, filter, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.SessionID != "session-1" {
			t.Errorf("expected session-1, got %s", e.SessionID)
		}
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Category: log.CategoryState},
		{Timestamp: base.Add(time.Minute), Category: log.CategoryState},
		{Timestamp: base.Add(2 * time.Minute), Category: log.CategoryState},
	}

	path := createTestTraceFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	filter, err := FilterOptions{
		TimeStart: base.Add(30 * time.Second).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Second).Format(time.RFC3339),
	}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if err := RunFilter(path, outPath, filter, io.Discard); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, base.Add(time.Minute))
	}
}

func TestFilterByTopicPrefixAndClass(t *testing.T) {
	path := createTestTraceFile(t, sampleEvents())
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	filter, err := FilterOptions{TopicPrefix: "milestone-info/", Class: "milestone"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := RunFilter(path, outPath, filter, io.Discard); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 || got[0].Message == nil {
		t.Fatalf("expected the milestone message only, got %d events", len(got))
	}
}

func TestFilterOptionsInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
	}{
		{"time-start", FilterOptions{TimeStart: "yesterday"}},
		{"time-end", FilterOptions{TimeEnd: "2026-13-01"}},
		{"layer", FilterOptions{Layer: "wire"}},
		{"direction", FilterOptions{Direction: "up"}},
		{"category", FilterOptions{Category: "control"}},
		{"class", FilterOptions{Class: "block"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
