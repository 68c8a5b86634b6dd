package execution

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deriv-core/pkg/db"
)

const (
	AuditTradeExecution = "trade_execution"
	AuditTradeClose     = "trade_close"
	AuditError          = "error"
)

// Mirror receives a copy of every audit entry, typically the batch writer.
type Mirror interface {
	WriteAudit(a db.AuditRow)
}

// AuditEntry is one JSON line of the audit file.
type AuditEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Event     string          `json:"event"`
	Symbol    string          `json:"symbol,omitempty"`
	Signal    any             `json:"signal,omitempty"`
	Adjusted  *Validation     `json:"validation_adjustment,omitempty"`
	Response  json.RawMessage `json:"deriv_response,omitempty"`
	Context   string          `json:"context,omitempty"`
	Details   string          `json:"details,omitempty"`
}

// AuditLog appends JSON lines and fsyncs after each one.
type AuditLog struct {
	mu     sync.Mutex
	f      *os.File
	mirror Mirror
	log    zerolog.Logger
	now    func() time.Time
}

// OpenAudit opens path for appending, creating parent directories.
// mirror may be nil.
func OpenAudit(path string, mirror Mirror, log zerolog.Logger) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{f: f, mirror: mirror, log: log.With().Str("component", "audit").Logger(), now: time.Now}, nil
}

// Trade records an execution attempt whatever its outcome.
func (a *AuditLog) Trade(symbol string, signal any, v *Validation, response any) string {
	return a.append(AuditEntry{Event: AuditTradeExecution, Symbol: symbol, Signal: signal, Adjusted: v, Response: raw(response)})
}

// Close records a close request and its broker response.
func (a *AuditLog) Close(symbol string, request any, response any) string {
	return a.append(AuditEntry{Event: AuditTradeClose, Symbol: symbol, Signal: request, Response: raw(response)})
}

// Error records a failure in the trading flow.
func (a *AuditLog) Error(symbol, context string, err error) string {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return a.append(AuditEntry{Event: AuditError, Symbol: symbol, Context: context, Details: details})
}

// Shutdown closes the file.
func (a *AuditLog) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

func (a *AuditLog) append(e AuditEntry) string {
	e.ID = uuid.NewString()
	e.Timestamp = a.now().UTC()
	line, err := json.Marshal(e)
	if err != nil {
		a.log.Error().Err(err).Str("event", e.Event).Msg("encode audit entry")
		return ""
	}

	a.mu.Lock()
	if a.f != nil {
		if _, err := a.f.Write(append(line, '\n')); err != nil {
			a.log.Error().Err(err).Msg("write audit entry")
		} else if err := a.f.Sync(); err != nil {
			a.log.Error().Err(err).Msg("sync audit log")
		}
	}
	a.mu.Unlock()

	if a.mirror != nil {
		a.mirror.WriteAudit(db.AuditRow{ID: e.ID, Event: e.Event, Symbol: e.Symbol, Payload: string(line), CreatedAt: e.Timestamp})
	}
	return e.ID
}

func raw(v any) json.RawMessage {
	switch r := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return r
	case []byte:
		return r
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// LoadAudit reads an audit file back.
func LoadAudit(path string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []AuditEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode audit line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
