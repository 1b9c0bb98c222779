package r2s3

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voxelbody.ai/internal/persistence/bodyfile"
)

type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	EnqueuedTotal       uint64
	QueueSaturatedTotal uint64
	DroppedTotal        uint64
	UploadSuccessTotal  uint64
	UploadFailTotal     uint64
	LastSuccessUnix     int64
	LastErrorUnix       int64
}

// Upload is one body file to mirror.
type Upload struct {
	Name string
	Path string
	Info bodyfile.Info
}

// ObjectKey is content addressed: prefix/bodies/<name>/<digest16>.octree[.ext].
// Re-uploading an unchanged body writes the same key.
func (u Upload) ObjectKey(prefix string) string {
	return path.Join(prefix, "bodies", u.Name, bodyfile.FileName(u.Info.Digest.Short(), u.Info.Codec))
}

type putter interface {
	PutFile(ctx context.Context, objectKey, localPath string, meta map[string]string) error
}

type Mirror struct {
	client putter
	prefix string
	logger *log.Logger

	jobs        chan Upload
	enqueueWait time.Duration
	backoff     time.Duration
	wg          sync.WaitGroup
	closeOnce   sync.Once

	enqueuedTotal       atomic.Uint64
	queueSaturatedTotal atomic.Uint64
	droppedTotal        atomic.Uint64
	uploadSuccessTotal  atomic.Uint64
	uploadFailTotal     atomic.Uint64
	lastSuccessUnix     atomic.Int64
	lastErrorUnix       atomic.Int64
}

func NewMirror(client *Client, prefix string, workers, queueCapacity int, enqueueWait time.Duration, logger *log.Logger) *Mirror {
	var p putter
	if client != nil {
		p = client
	}
	return newMirror(p, prefix, workers, queueCapacity, enqueueWait, logger)
}

func newMirror(client putter, prefix string, workers, queueCapacity int, enqueueWait time.Duration, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	if enqueueWait <= 0 {
		enqueueWait = 25 * time.Millisecond
	}
	m := &Mirror{
		client:      client,
		prefix:      strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:      logger,
		jobs:        make(chan Upload, queueCapacity),
		enqueueWait: enqueueWait,
		backoff:     200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for u := range m.jobs {
				m.uploadOne(u)
			}
		}()
	}
	return m
}

// Enqueue waits at most enqueueWait for queue space, then drops the upload.
func (m *Mirror) Enqueue(u Upload) {
	if m == nil || m.client == nil {
		return
	}
	m.enqueuedTotal.Add(1)

	select {
	case m.jobs <- u:
		return
	default:
	}

	m.queueSaturatedTotal.Add(1)
	timer := time.NewTimer(m.enqueueWait)
	defer timer.Stop()
	select {
	case m.jobs <- u:
		return
	case <-timer.C:
		dropped := m.droppedTotal.Add(1)
		m.printf("r2 mirror drop body=%s local=%s reason=queue_saturated wait_ms=%d dropped_total=%d", u.Name, u.Path, m.enqueueWait.Milliseconds(), dropped)
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() {
		close(m.jobs)
		m.wg.Wait()
	})
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(m.jobs),
		QueueCapacity:       cap(m.jobs),
		EnqueuedTotal:       m.enqueuedTotal.Load(),
		QueueSaturatedTotal: m.queueSaturatedTotal.Load(),
		DroppedTotal:        m.droppedTotal.Load(),
		UploadSuccessTotal:  m.uploadSuccessTotal.Load(),
		UploadFailTotal:     m.uploadFailTotal.Load(),
		LastSuccessUnix:     m.lastSuccessUnix.Load(),
		LastErrorUnix:       m.lastErrorUnix.Load(),
	}
}

func (m *Mirror) uploadOne(u Upload) {
	if err := validUpload(u); err != nil {
		m.uploadFailTotal.Add(1)
		m.printf("r2 mirror skip body=%s local=%s err=%v", u.Name, u.Path, err)
		return
	}
	key := u.ObjectKey(m.prefix)
	if err := m.uploadWithRetry(key, u); err != nil {
		m.uploadFailTotal.Add(1)
		m.lastErrorUnix.Store(time.Now().UTC().Unix())
		m.printf("r2 mirror upload failed key=%s local=%s err=%v", key, u.Path, err)
		return
	}
	m.uploadSuccessTotal.Add(1)
	m.lastSuccessUnix.Store(time.Now().UTC().Unix())
	m.printf("r2 mirror uploaded key=%s local=%s", key, u.Path)
}

func (m *Mirror) uploadWithRetry(key string, u Upload) error {
	const maxAttempts = 4
	meta := map[string]string{MetaDigest: u.Info.Digest.String()}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := m.client.PutFile(ctx, key, u.Path, meta)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	return lastErr
}

func validUpload(u Upload) error {
	if u.Name == "" || strings.ContainsAny(u.Name, `/\`) {
		return fmt.Errorf("invalid body name %q", u.Name)
	}
	if u.Path == "" {
		return fmt.Errorf("empty local path")
	}
	if _, err := os.Stat(filepath.Clean(u.Path)); err != nil {
		return err
	}
	return nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
