package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lox/memoryforbots/internal/game"
)

// ErrCorrupt is returned when a journal line cannot be decoded.
var ErrCorrupt = errors.New("journal: corrupt record")

// Record is the on-disk form of a single engine signal.
type Record struct {
	Seq       int64          `json:"seq"`
	Type      game.EventType `json:"type"`
	Caller    string         `json:"caller"`
	GameID    string         `json:"game_id,omitempty"`
	Card1     *int           `json:"card1,omitempty"`
	Card2     *int           `json:"card2,omitempty"`
	PairID    *int           `json:"pair_id,omitempty"`
	Score     *int           `json:"score,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func intPtr(v int) *int { return &v }

// RecordFromEvent converts an engine signal into a record. Seq is left for
// the writer to assign.
func RecordFromEvent(event game.GameEvent) (Record, error) {
	r := Record{Type: event.EventType(), Timestamp: event.Timestamp()}

	switch ev := event.(type) {
	case game.GameStartedEvent:
		r.Caller = ev.Caller
		r.GameID = ev.GameID
	case game.CardMatchedEvent:
		r.Caller = ev.Caller
		r.GameID = ev.GameID
		r.Card1 = intPtr(ev.Card1)
		r.Card2 = intPtr(ev.Card2)
		r.PairID = intPtr(ev.PairID)
	case game.GameEndedEvent:
		r.Caller = ev.Caller
		r.GameID = ev.GameID
		r.Score = intPtr(ev.Score)
	default:
		return Record{}, fmt.Errorf("journal: unsupported event %T", event)
	}
	return r, nil
}

// Event converts the record back into an engine signal.
func (r Record) Event() (game.GameEvent, error) {
	switch r.Type {
	case game.EventTypeGameStarted:
		return game.NewGameStartedEvent(r.Caller, r.GameID, r.Timestamp), nil
	case game.EventTypeCardMatched:
		if r.Card1 == nil || r.Card2 == nil {
			return nil, fmt.Errorf("%w: seq %d missing cards", ErrCorrupt, r.Seq)
		}
		pairID := 0
		if r.PairID != nil {
			pairID = *r.PairID
		}
		return game.NewCardMatchedEvent(r.Caller, r.GameID, *r.Card1, *r.Card2, pairID, r.Timestamp), nil
	case game.EventTypeGameEnded:
		score := 0
		if r.Score != nil {
			score = *r.Score
		}
		return game.NewGameEndedEvent(r.Caller, r.GameID, score, r.Timestamp), nil
	default:
		return nil, fmt.Errorf("%w: seq %d unknown type %q", ErrCorrupt, r.Seq, r.Type)
	}
}

// Read decodes JSON-lines records. A final line that is cut short (a write
// interrupted by a crash) is dropped; corruption anywhere else is an error.
func Read(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	terminated := len(data) == 0 || data[len(data)-1] == '\n'

	line := 0
	var pending error
	for scanner.Scan() {
		line++
		if pending != nil {
			return nil, pending
		}
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			pending = fmt.Errorf("%w: line %d: %v", ErrCorrupt, line, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	if pending != nil && terminated {
		return nil, pending
	}
	return records, nil
}

// Load reads every record from path. A missing file yields no records.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Restore re-applies records to an engine in order. It returns the number of
// records applied before any failure.
func Restore(e *game.Engine, records []Record) (int, error) {
	for i, rec := range records {
		event, err := rec.Event()
		if err != nil {
			return i, err
		}
		if err := e.Apply(event); err != nil {
			return i, fmt.Errorf("restore seq %d: %w", rec.Seq, err)
		}
	}
	return len(records), nil
}
