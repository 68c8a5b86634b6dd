package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deriv-core/pkg/db"
)

func openTestDB(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestBatchWriterFlushesOnSize(t *testing.T) {
	database := openTestDB(t)
	bw := NewBatchWriter(database.DB, 2, time.Hour, zerolog.Nop())
	defer bw.Close()

	bw.WriteAudit(db.AuditRow{ID: "a1", Event: "trade_execution", Symbol: "R_100", Payload: `{}`})
	if got := bw.Pending(); got != 1 {
		t.Fatalf("Pending=%d, expected 1", got)
	}
	bw.WriteAudit(db.AuditRow{ID: "a2", Event: "error", Payload: `{}`})
	if got := bw.Pending(); got != 0 {
		t.Fatalf("Pending=%d after reaching maxSize, expected 0", got)
	}

	rows, err := database.ListAudit(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, expected 2", len(rows))
	}
	st := bw.Stats()
	if st.Written != 2 || st.Batches != 1 || st.LastBatch != 2 || st.Pending != 0 || st.FlushedAt.IsZero() {
		t.Fatalf("stats=%+v", st)
	}
}

func TestBatchWriterCloseFlushes(t *testing.T) {
	database := openTestDB(t)
	bw := NewBatchWriter(database.DB, 100, time.Hour, zerolog.Nop())

	bw.WriteAudit(db.AuditRow{ID: "a1", Event: "trade_close", Payload: `{}`})
	bw.WriteAudit(db.AuditRow{ID: "a1", Event: "trade_close", Payload: `{}`})
	if err := bw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = bw.Close()

	rows, err := database.ListAudit(context.Background(), "trade_close", 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, expected duplicate id ignored", len(rows))
	}
}

func TestBatchWriterRollsBackBadBatch(t *testing.T) {
	database := openTestDB(t)
	bw := NewBatchWriter(database.DB, 100, time.Hour, zerolog.Nop())
	defer bw.Close()

	bw.WriteAudit(db.AuditRow{ID: "ok", Event: "error", Payload: `{}`})
	bw.WriteQuery("INSERT INTO missing_table (x) VALUES (?)", 1)
	if err := bw.Flush(); err == nil {
		t.Fatalf("expected error from bad query")
	}

	rows, _ := database.ListAudit(context.Background(), "", 10)
	if len(rows) != 0 {
		t.Fatalf("rows=%d, expected rollback", len(rows))
	}
	if got := bw.Stats().Failed; got != 1 {
		t.Fatalf("Failed=%d, expected 1", got)
	}
}
