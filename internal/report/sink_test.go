package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSinkWritesOneJSONLinePerRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	at := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := Record{
			Timestamp: at.Add(time.Duration(i) * time.Second),
			Device:    "testbox",
			Errors:    ErrorSummary{TotalErrors: int64(i)},
		}
		if err := sink.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if entry["msg"] != "monitor tick" {
			t.Fatalf("line %d: unexpected msg %v", lines, entry["msg"])
		}
		if entry["device"] != "testbox" {
			t.Fatalf("line %d: device lost, got %v", lines, entry["device"])
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 3 {
		t.Fatalf("expected 3 report lines, got %d", lines)
	}
}

func TestFileSinkAppendsAcrossReopens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.jsonl")
	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path)
		if err != nil {
			t.Fatalf("NewFileSink: %v", err)
		}
		if err := sink.Write(Record{Device: "testbox"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	f, lines := data, 0
	for _, b := range f {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 appended lines, got %d", lines)
	}
}

func TestNewFileSinkRejectsBadPath(t *testing.T) {
	t.Parallel()

	if _, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "report.jsonl")); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}
