// Package capture persists relayed frames to SQLite for later inspection.
package capture

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrClosed = errors.New("capture: store closed")

// Record is one relayed frame
type Record struct {
	ID         int64
	SessionID  uint64
	Direction  string // "client" or "server"
	KindID     uint8
	Variant    string
	Payload    []byte
	Forwarded  bool
	CapturedAt time.Time
}

// VariantCount is the number of captured frames of one variant
type VariantCount struct {
	Variant string
	Count   int64
}

// Options tunes the write buffer
type Options struct {
	FlushInterval time.Duration
	BatchSize     int
}

func DefaultOptions() Options {
	return Options{
		FlushInterval: 100 * time.Millisecond,
		BatchSize:     256,
	}
}

// Store wraps the capture database
type Store struct {
	conn      *sql.DB // read pool
	writeConn *sql.DB // single writer
	ids       *Snowflake
	buffer    *WriteBuffer
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

func openConn(path string, maxOpen int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return conn, nil
}

// Open opens the capture database at path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, DefaultOptions())
}

// OpenWithOptions opens the capture database at path, migrating it if needed
func OpenWithOptions(path string, opts Options) (*Store, error) {
	writeConn, err := openConn(path, 1)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(writeConn, path); err != nil {
		writeConn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	conn, err := openConn(path, 8)
	if err != nil {
		writeConn.Close()
		return nil, err
	}

	s := &Store{
		conn:      conn,
		writeConn: writeConn,
		ids:       NewSnowflake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0),
	}
	s.buffer = NewWriteBuffer(s, opts)
	return s, nil
}

// Record queues a frame for writing. It does not wait for the write.
func (s *Store) Record(rec Record) error {
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = time.Now()
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	rec.ID = s.ids.NextID()
	return s.buffer.Add(rec)
}

// Flush writes every queued frame
func (s *Store) Flush() error {
	return s.buffer.Flush()
}

// Recent returns up to limit frames, newest first
func (s *Store) Recent(limit int) ([]Record, error) {
	return s.query(`
		SELECT id, session_id, direction, kind_id, variant, payload, forwarded, captured_at
		FROM frames ORDER BY id DESC LIMIT ?`, limit)
}

// SessionFrames returns up to limit frames of one session, oldest first
func (s *Store) SessionFrames(sessionID uint64, limit int) ([]Record, error) {
	return s.query(`
		SELECT id, session_id, direction, kind_id, variant, payload, forwarded, captured_at
		FROM frames WHERE session_id = ? ORDER BY id ASC LIMIT ?`, int64(sessionID), limit)
}

func (s *Store) query(q string, args ...any) ([]Record, error) {
	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			sessionID  int64
			kindID     int64
			capturedAt int64
		)
		if err := rows.Scan(&rec.ID, &sessionID, &rec.Direction, &kindID, &rec.Variant, &rec.Payload, &rec.Forwarded, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		rec.SessionID = uint64(sessionID)
		rec.KindID = uint8(kindID)
		rec.CapturedAt = time.UnixMilli(capturedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored frames
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// CountByVariant returns frame counts per variant, most frequent first
func (s *Store) CountByVariant() ([]VariantCount, error) {
	rows, err := s.conn.Query(`
		SELECT variant, COUNT(*) AS n FROM frames
		GROUP BY variant ORDER BY n DESC, variant ASC`)
	if err != nil {
		return nil, fmt.Errorf("count variants: %w", err)
	}
	defer rows.Close()

	var counts []VariantCount
	for rows.Next() {
		var c VariantCount
		if err := rows.Scan(&c.Variant, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Close flushes pending frames and closes the database
func (s *Store) Close() error {
	s.buffer.Close()
	return errors.Join(s.conn.Close(), s.writeConn.Close())
}
