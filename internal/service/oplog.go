package service

import (
	"encoding/json"
	"log"
	"time"
)

type opLogEntry struct {
	Timestamp  string `json:"ts"`
	Op         string `json:"op"`
	Source     string `json:"source,omitempty"`
	Count      int    `json:"count"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func newOpLogEntry(op, source string, count int, start time.Time, err error) opLogEntry {
	entry := opLogEntry{
		Timestamp:  start.UTC().Format(time.RFC3339Nano),
		Op:         op,
		Source:     source,
		Count:      count,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// logOp emits one JSON line per pipeline operation.
func logOp(op, source string, count int, start time.Time, err error) {
	payload, mErr := json.Marshal(newOpLogEntry(op, source, count, start, err))
	if mErr != nil {
		log.Printf("op_log_marshal_error: %v", mErr)
		return
	}
	log.Println(string(payload))
}
