package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelbody.ai/internal/storage"
)

func TestDecodeLogger_RecordsTrace(t *testing.T) {
	dataDir := t.TempDir()
	l := NewDecodeLogger(dataDir)
	l.w.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

	var tr Trace
	_, err := storage.Decode([]byte("Octree\x09"), tr.Logf)
	if err == nil {
		t.Fatalf("expected decode failure")
	}
	if err := l.Record(DecodeEvent{Op: "inspect", Path: "bad.octree", Error: err.Error(), Lines: tr.Lines()}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(DecodeEvent{Op: "verify", Path: "good.octree", OK: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Reopening the same hour appends a second frame.
	if err := l.Record(DecodeEvent{Op: "verify", Path: "again.octree", OK: true}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p := filepath.Join(dataDir, "diagnostics", "decode-2026-05-06-07.jsonl.zst")
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("log file: %v", err)
	}
	evs, err := ReadDecodeEvents(p)
	if err != nil {
		t.Fatalf("ReadDecodeEvents: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("events=%d want 3", len(evs))
	}
	if evs[0].OK || len(evs[0].Lines) == 0 || evs[0].Time != "2026-05-06T07:08:09Z" {
		t.Fatalf("first event=%+v", evs[0])
	}
	if !evs[1].OK || evs[2].Path != "again.octree" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestDecodeLogger_Nil(t *testing.T) {
	var l *DecodeLogger
	if err := l.Record(DecodeEvent{}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
