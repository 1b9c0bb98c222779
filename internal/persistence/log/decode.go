// Package log keeps compressed JSONL records of container decode attempts.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DecodeEvent is one decode attempt and every diagnostic line it produced.
type DecodeEvent struct {
	Time        string   `json:"time"`
	Op          string   `json:"op"`
	Path        string   `json:"path"`
	Codec       string   `json:"codec,omitempty"`
	Digest      string   `json:"digest,omitempty"`
	EncodedSize int      `json:"encoded_size,omitempty"`
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Lines       []string `json:"lines,omitempty"`
}

// Trace collects diagnostic lines. Its Logf method satisfies storage.Logf.
type Trace struct {
	mu    sync.Mutex
	lines []string
}

func (t *Trace) Logf(format string, args ...any) {
	t.mu.Lock()
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

func (t *Trace) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// DecodeLogger writes DecodeEvents under `<dataDir>/diagnostics`.
type DecodeLogger struct{ w *JSONLZstdWriter }

func NewDecodeLogger(dataDir string) *DecodeLogger {
	return &DecodeLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "diagnostics"), "decode")}
}

// Record stamps ev with the current time when it has none.
func (l *DecodeLogger) Record(ev DecodeEvent) error {
	if l == nil {
		return nil
	}
	if ev.Time == "" {
		ev.Time = l.w.now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(ev)
}

func (l *DecodeLogger) Close() error {
	if l == nil {
		return nil
	}
	return l.w.Close()
}

// ReadDecodeEvents reads every event in one hourly file.
func ReadDecodeEvents(path string) ([]DecodeEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []DecodeEvent
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var ev DecodeEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ev)
	}
	return out, sc.Err()
}
