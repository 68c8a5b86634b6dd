package persistence

import (
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/pkg/db"
)

// WriteOp represents a database write operation.
type WriteOp struct {
	Table string
	Query string
	Args  []any
}

// BatchWriter batches database writes so the audit mirror never puts a
// sqlite round trip on the trade path.
type BatchWriter struct {
	db          *sql.DB
	log         zerolog.Logger
	buffer      []WriteOp
	mu          sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup

	written atomic.Uint64
	batches atomic.Uint64
	failed  atomic.Uint64
	lastMu  sync.Mutex
	last    int
	flushed time.Time
}

// Stats is the mirror health reported on /status.
type Stats struct {
	Pending   int       `json:"pending"`
	Written   uint64    `json:"written"`
	Batches   uint64    `json:"batches"`
	Failed    uint64    `json:"failed_batches"`
	LastBatch int       `json:"last_batch_size"`
	FlushedAt time.Time `json:"last_flush_at"`
}

// NewBatchWriter creates a batch writer with specified parameters.
// maxSize: max operations before auto-flush
// interval: time-based flush interval
func NewBatchWriter(conn *sql.DB, maxSize int, interval time.Duration, log zerolog.Logger) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		db:          conn,
		log:         log.With().Str("component", "batch_writer").Logger(),
		buffer:      make([]WriteOp, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()

	return bw
}

// Write adds a write operation to the batch.
func (bw *BatchWriter) Write(op WriteOp) {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, op)
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		_ = bw.Flush()
	}
}

// WriteQuery is a convenience method for simple queries.
func (bw *BatchWriter) WriteQuery(query string, args ...any) {
	bw.Write(WriteOp{
		Query: query,
		Args:  args,
	})
}

// WriteAudit queues an audit mirror row.
func (bw *BatchWriter) WriteAudit(a db.AuditRow) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	bw.Write(WriteOp{
		Table: "audit_log",
		Query: db.InsertAuditQuery,
		Args:  []any{a.ID, a.Event, a.Symbol, a.Payload, a.CreatedAt},
	})
}

// Flush immediately writes all buffered operations to the database.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}

	ops := bw.buffer
	bw.buffer = make([]WriteOp, 0, bw.maxSize)
	bw.mu.Unlock()

	return bw.executeBatch(ops)
}

// executeBatch runs a batch of operations in a transaction.
func (bw *BatchWriter) executeBatch(ops []WriteOp) error {
	bw.written.Add(uint64(len(ops)))
	bw.batches.Add(1)
	bw.lastMu.Lock()
	bw.last = len(ops)
	bw.flushed = time.Now()
	bw.lastMu.Unlock()

	tx, err := bw.db.Begin()
	if err != nil {
		bw.failed.Add(1)
		bw.log.Error().Err(err).Msg("failed to begin transaction")
		return err
	}

	for _, op := range ops {
		if _, err := tx.Exec(op.Query, op.Args...); err != nil {
			_ = tx.Rollback()
			bw.failed.Add(1)
			bw.log.Error().Err(err).Str("table", op.Table).Int("ops", len(ops)).Msg("query failed, rolling back")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		bw.failed.Add(1)
		bw.log.Error().Err(err).Msg("commit failed")
		return err
	}

	bw.log.Debug().Int("ops", len(ops)).Msg("flushed")
	return nil
}

// backgroundFlush periodically flushes the buffer.
func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bw.Flush(); err != nil {
				bw.log.Warn().Err(err).Msg("background flush error")
			}
		case <-bw.done:
			if err := bw.Flush(); err != nil {
				bw.log.Warn().Err(err).Msg("final flush error")
			}
			return
		}
	}
}

// Pending returns the number of pending operations.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Stats snapshots the writer counters.
func (bw *BatchWriter) Stats() Stats {
	st := Stats{
		Pending: bw.Pending(),
		Written: bw.written.Load(),
		Batches: bw.batches.Load(),
		Failed:  bw.failed.Load(),
	}
	bw.lastMu.Lock()
	st.LastBatch, st.FlushedAt = bw.last, bw.flushed
	bw.lastMu.Unlock()
	return st
}

// Close flushes what is buffered and stops the background loop.
func (bw *BatchWriter) Close() error {
	bw.closeOnce.Do(func() { close(bw.done) })
	bw.wg.Wait()
	return nil
}
