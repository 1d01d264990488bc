package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// WriteBuffer batches frame inserts into a single transaction per flush
type WriteBuffer struct {
	store         *Store
	flushInterval time.Duration
	batchSize     int

	mu      sync.Mutex
	pending []Record
	closed  bool

	flushMu sync.Mutex // serializes flushes
	kick    chan struct{}

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewWriteBuffer creates a write buffer and starts its flush loop
func NewWriteBuffer(store *Store, opts Options) *WriteBuffer {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultOptions().FlushInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}

	wb := &WriteBuffer{
		store:         store,
		flushInterval: opts.FlushInterval,
		batchSize:     opts.BatchSize,
		pending:       make([]Record, 0, opts.BatchSize),
		kick:          make(chan struct{}, 1),
		shutdown:      make(chan struct{}),
	}

	wb.wg.Add(1)
	go wb.flushLoop()

	return wb
}

// Add queues a record. A full batch wakes the flush loop early.
func (wb *WriteBuffer) Add(rec Record) error {
	wb.mu.Lock()
	if wb.closed {
		wb.mu.Unlock()
		return ErrClosed
	}
	wb.pending = append(wb.pending, rec)
	full := len(wb.pending) >= wb.batchSize
	wb.mu.Unlock()

	if full {
		select {
		case wb.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of queued records
func (wb *WriteBuffer) Pending() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.pending)
}

func (wb *WriteBuffer) flushLoop() {
	defer wb.wg.Done()

	ticker := time.NewTicker(wb.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-wb.kick:
		case <-wb.shutdown:
			// Final flush on shutdown
			if err := wb.Flush(); err != nil {
				log.Error().Err(err).Msg("final capture flush failed")
			}
			return
		}
		if err := wb.Flush(); err != nil {
			log.Error().Err(err).Msg("capture flush failed")
		}
	}
}

// Flush writes every queued record in one transaction. Records of a failed
// batch are dropped.
func (wb *WriteBuffer) Flush() error {
	wb.flushMu.Lock()
	defer wb.flushMu.Unlock()

	wb.mu.Lock()
	batch := wb.pending
	wb.pending = make([]Record, 0, wb.batchSize)
	wb.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := wb.store.writeConn.Begin()
	if err != nil {
		return fmt.Errorf("begin capture batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO frames (id, session_id, direction, kind_id, variant, payload, forwarded, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare capture insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch {
		if _, err := stmt.Exec(
			rec.ID, int64(rec.SessionID), rec.Direction, int64(rec.KindID), rec.Variant,
			rec.Payload, rec.Forwarded, rec.CapturedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert frame %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit capture batch: %w", err)
	}
	log.Debug().Int("frames", len(batch)).Msg("flushed captures")
	return nil
}

// Close stops the flush loop after a final flush. Later Adds fail.
func (wb *WriteBuffer) Close() {
	wb.mu.Lock()
	if wb.closed {
		wb.mu.Unlock()
		return
	}
	wb.closed = true
	wb.mu.Unlock()

	close(wb.shutdown)
	wb.wg.Wait()
}
