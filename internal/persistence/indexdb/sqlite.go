// Package indexdb keeps a queryable catalog of every body file written. The
// files stay the source of truth; the catalog can be rebuilt from them.
package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxelbody.ai/internal/storage"
)

const schemaVersion = "1"

// timeLayout keeps recorded_at lexically ordered.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Lookup for an unknown body name.
var ErrNotFound = errors.New("body not found")

type SQLiteIndex struct {
	db *sql.DB

	ch   chan BodyRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropped    atomic.Uint64
	written    atomic.Uint64
	writeFails atomic.Uint64
}

// BodyRow is one recorded write of a body file.
type BodyRow struct {
	ID            string
	Name          string
	Kind          string
	Seed          int64
	Extent        int
	FormatVersion int
	Digest        string
	Codec         string
	EncodedSize   int
	StoredSize    int
	Path          string
	RecordedAt    string
	Summary       storage.Summary
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	WrittenTotal   uint64
	DropTotal      uint64
	WriteFailTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 4096)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan BodyRow, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bodies (
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			seed INTEGER NOT NULL,
			extent INTEGER NOT NULL,
			format_version INTEGER NOT NULL,
			digest TEXT NOT NULL,
			codec TEXT NOT NULL,
			encoded_size INTEGER NOT NULL,
			stored_size INTEGER NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			summary BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS body_history (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_body_history_name ON body_history(name, recorded_at);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordBody queues a row for the writer goroutine. It never blocks: when the
// queue is full the row is dropped and counted.
func (s *SQLiteIndex) RecordBody(r BodyRow) {
	if s == nil || s.closed.Load() {
		return
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RecordedAt == "" {
		r.RecordedAt = time.Now().UTC().Format(timeLayout)
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		WrittenTotal:   s.written.Load(),
		DropTotal:      s.dropped.Load(),
		WriteFailTotal: s.writeFails.Load(),
	}
}

const bodyColumns = `id,name,kind,seed,extent,format_version,digest,codec,encoded_size,stored_size,path,recorded_at,summary`

// Bodies lists the latest row of every body, by name.
func (s *SQLiteIndex) Bodies(ctx context.Context) ([]BodyRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bodyColumns+` FROM bodies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BodyRow
	for rows.Next() {
		r, err := scanBody(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Lookup returns the latest row recorded for name.
func (s *SQLiteIndex) Lookup(ctx context.Context, name string) (BodyRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bodyColumns+` FROM bodies WHERE name=?`, name)
	r, err := scanBody(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BodyRow{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r, err
}

// History lists every digest recorded for name, oldest first.
func (s *SQLiteIndex) History(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT digest FROM body_history WHERE name=? ORDER BY recorded_at, rowid`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBody(sc scanner) (BodyRow, error) {
	var (
		r       BodyRow
		summary []byte
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.Kind, &r.Seed, &r.Extent, &r.FormatVersion, &r.Digest, &r.Codec,
		&r.EncodedSize, &r.StoredSize, &r.Path, &r.RecordedAt, &summary); err != nil {
		return BodyRow{}, err
	}
	if err := cbor.Unmarshal(summary, &r.Summary); err != nil {
		return BodyRow{}, fmt.Errorf("body %q summary: %w", r.Name, err)
	}
	return r, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	upsertBody, _ := s.db.Prepare(`INSERT OR REPLACE INTO bodies(` + bodyColumns + `) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertHistory, _ := s.db.Prepare(`INSERT OR REPLACE INTO body_history(id,name,digest,path,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		if upsertBody != nil {
			_ = upsertBody.Close()
		}
		if insertHistory != nil {
			_ = insertHistory.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 256
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFails.Add(uint64(opCount))
		} else {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFails.Add(uint64(opCount))
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil || upsertBody == nil || insertHistory == nil {
			s.writeFails.Add(1)
			continue
		}
		summary, err := cbor.Marshal(r.Summary)
		if err != nil {
			s.writeFails.Add(1)
			continue
		}
		if _, err := tx.Stmt(upsertBody).Exec(
			r.ID, r.Name, r.Kind, r.Seed, r.Extent, r.FormatVersion, r.Digest, r.Codec,
			r.EncodedSize, r.StoredSize, r.Path, r.RecordedAt, summary,
		); err != nil {
			opCount++
			rollback()
			continue
		}
		if _, err := tx.Stmt(insertHistory).Exec(r.ID, r.Name, r.Digest, r.Path, r.RecordedAt); err != nil {
			opCount++
			rollback()
			continue
		}
		opCount++
		// Readers share the single connection, so never hold a transaction
		// open while the queue is idle.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
