package storage

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JournalEntry is one line in the capture debug journal.
type JournalEntry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	URL       string    `json:"url,omitempty"`
	Status    int       `json:"status,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Journal asynchronously appends JSON lines describing capture events to a
// rotated debug log. It is the optional diagnostics sink; a nil Journal is a
// no-op, so callers never branch on whether journaling is enabled.
type Journal struct {
	writeCh chan JournalEntry
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *lumberjack.Logger
}

// NewJournal opens a journal writing to <dir>/capture.jsonl with rotation.
func NewJournal(dir string, bufferSize, maxSizeMB int) *Journal {
	j := &Journal{
		writeCh: make(chan JournalEntry, bufferSize),
		done:    make(chan struct{}),
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(dir, "capture.jsonl"),
			MaxSize:    maxSizeMB,
			MaxBackups: 10,
			MaxAge:     14,
			LocalTime:  false,
		},
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Record queues an entry. Non-blocking: when the buffer is full the entry is
// dropped with a warning rather than stalling capture.
func (j *Journal) Record(entry JournalEntry) {
	if j == nil {
		return
	}
	select {
	case j.writeCh <- entry:
	case <-j.done:
	default:
		slog.Warn("capture journal buffer full, dropping entry", "event", entry.Event)
	}
}

// Close flushes queued entries and closes the underlying file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	close(j.done)
	j.wg.Wait()

	for {
		select {
		case entry := <-j.writeCh:
			j.writeEntry(entry)
		default:
			return j.logger.Close()
		}
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case entry := <-j.writeCh:
			j.writeEntry(entry)
		case <-j.done:
			return
		}
	}
}

func (j *Journal) writeEntry(entry JournalEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("failed to marshal journal entry", "error", err)
		return
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write journal entry", "error", err)
	}
}
