package events

import (
	"encoding/json"
	"io"
)

// LogWriter republishes zerolog JSON lines as EventLog messages. Pair it
// with the console writer through zerolog.MultiLevelWriter.
type LogWriter struct {
	bus *Bus
}

var _ io.Writer = (*LogWriter)(nil)

func NewLogWriter(bus *Bus) *LogWriter { return &LogWriter{bus: bus} }

func (w *LogWriter) Write(p []byte) (int, error) {
	var rec map[string]any
	if err := json.Unmarshal(p, &rec); err != nil {
		// not a zerolog line; still report the byte count so the logger
		// does not treat it as a short write
		return len(p), nil
	}
	line := LogLine{}
	if v, ok := rec["level"].(string); ok {
		line.Level = v
	}
	if v, ok := rec["message"].(string); ok {
		line.Message = v
	}
	if v, ok := rec["component"].(string); ok {
		line.Component = v
	}
	delete(rec, "level")
	delete(rec, "message")
	delete(rec, "component")
	delete(rec, "time")
	if len(rec) > 0 {
		line.Fields = rec
	}
	w.bus.Publish(EventLog, line)
	return len(p), nil
}
