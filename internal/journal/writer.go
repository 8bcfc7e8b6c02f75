// Package journal persists engine signals as an append-only JSON-lines log
// and rebuilds engine state from it after a restart.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/memoryforbots/internal/fileutil"
	"github.com/lox/memoryforbots/internal/game"
)

// Snapshot is the score summary written after every completed game.
type Snapshot struct {
	Scores    map[string]int `json:"scores"`
	Games     int            `json:"games"`
	LastGame  string         `json:"last_game,omitempty"`
	Seq       int64          `json:"seq"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Writer appends records to a journal file. It is registered as an engine
// subscriber, so each record is written and synced before the engine call
// that produced it returns.
type Writer struct {
	mu           sync.Mutex
	file         *os.File
	seq          int64
	scores       map[string]int
	games        int
	snapshotPath string
	logger       *log.Logger
	lastErr      error
	failed       chan struct{}
	failOnce     sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSnapshot writes a score snapshot to path whenever a game ends.
func WithSnapshot(path string) WriterOption {
	return func(w *Writer) {
		w.snapshotPath = path
	}
}

// WithWriterLogger sets the writer logger.
func WithWriterLogger(logger *log.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger.WithPrefix("journal")
	}
}

// Open opens (or creates) the journal at path for appending. Existing records
// seed the sequence counter and score tally. A partial record left by an
// interrupted write is cut off so the next record starts on its own line.
func Open(path string, opts ...WriterOption) (*Writer, error) {
	existing, err := Load(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal for append: %w", err)
	}

	w := &Writer{
		file:   f,
		scores: make(map[string]int),
		logger: log.NewWithOptions(io.Discard, log.Options{}),
		failed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dropped, err := trimPartialTail(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if dropped > 0 {
		w.logger.Warn("Dropped partial journal record", "path", path, "bytes", dropped)
	}

	for _, rec := range existing {
		w.tally(rec)
	}

	w.logger.Debug("Journal opened", "path", path, "records", len(existing), "seq", w.seq)
	return w, nil
}

// trimPartialTail truncates f back to its last newline and returns the number
// of bytes removed.
func trimPartialTail(f *os.File) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek journal: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return 0, nil
	}

	keep := int64(bytes.LastIndexByte(data, '\n') + 1)
	if err := f.Truncate(keep); err != nil {
		return 0, fmt.Errorf("truncate journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync journal: %w", err)
	}
	return int64(len(data)) - keep, nil
}

// OnEvent implements game.EventSubscriber.
func (w *Writer) OnEvent(event game.GameEvent) {
	if err := w.Append(event); err != nil {
		w.logger.Error("Failed to journal event", "type", event.EventType(), "error", err)
	}
}

// Append writes one event and syncs the file.
func (w *Writer) Append(event game.GameEvent) error {
	rec, err := RecordFromEvent(event)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	rec.Seq = w.seq + 1
	line, err := json.Marshal(rec)
	if err != nil {
		return w.fail(fmt.Errorf("marshal record: %w", err))
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return w.fail(fmt.Errorf("append record: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		return w.fail(fmt.Errorf("sync journal: %w", err))
	}
	w.tally(rec)

	if rec.Type == game.EventTypeGameEnded && w.snapshotPath != "" {
		if err := fileutil.WriteJSONAtomic(w.snapshotPath, w.snapshotLocked(rec.GameID, rec.Timestamp), 0o644); err != nil {
			return w.fail(fmt.Errorf("write snapshot: %w", err))
		}
	}
	return nil
}

func (w *Writer) fail(err error) error {
	w.lastErr = err
	w.failOnce.Do(func() { close(w.failed) })
	return err
}

func (w *Writer) tally(rec Record) {
	if rec.Seq > w.seq {
		w.seq = rec.Seq
	}
	switch rec.Type {
	case game.EventTypeCardMatched:
		w.scores[rec.Caller]++
	case game.EventTypeGameEnded:
		w.games++
	}
}

func (w *Writer) snapshotLocked(gameID string, ts time.Time) Snapshot {
	scores := make(map[string]int, len(w.scores))
	for k, v := range w.scores {
		scores[k] = v
	}
	return Snapshot{
		Scores:    scores,
		Games:     w.games,
		LastGame:  gameID,
		Seq:       w.seq,
		UpdatedAt: ts,
	}
}

// Seq returns the sequence number of the last record written.
func (w *Writer) Seq() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Err returns the most recent write failure, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Failed is closed on the first write failure. Records after that point are
// not durable.
func (w *Writer) Failed() <-chan struct{} {
	return w.failed
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
