package server

import (
	"sort"
	"sync"

	"github.com/lox/memoryforbots/internal/game"
)

// CallerStatistics tracks request outcomes for a single caller
type CallerStatistics struct {
	Caller   string         `json:"caller"`
	Attempts int            `json:"attempts"`
	Matches  int            `json:"matches"`
	Misses   int            `json:"misses"`
	Rejected map[string]int `json:"rejected,omitempty"`
	Finished int            `json:"finished"`
	Accuracy float64        `json:"accuracy"`
}

// StatsSnapshot is the /api/stats payload
type StatsSnapshot struct {
	GamesStarted  int                `json:"gamesStarted"`
	GamesFinished int                `json:"gamesFinished"`
	Callers       []CallerStatistics `json:"callers"`
}

// StatsCollector counts attempts per caller from the connection layer and
// game lifecycle from engine signals.
type StatsCollector struct {
	mu            sync.RWMutex
	callers       map[string]*CallerStatistics
	gamesStarted  int
	gamesFinished int
}

// NewStatsCollector creates an empty collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{callers: make(map[string]*CallerStatistics)}
}

func (s *StatsCollector) caller(name string) *CallerStatistics {
	c, ok := s.callers[name]
	if !ok {
		c = &CallerStatistics{Caller: name}
		s.callers[name] = c
	}
	return c
}

// RecordAttempt records the outcome of one attempt_match request. A non-nil
// err is counted under its wire code.
func (s *StatsCollector) RecordAttempt(caller string, res game.MatchResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.caller(caller)
	c.Attempts++
	switch {
	case err != nil:
		if c.Rejected == nil {
			c.Rejected = make(map[string]int)
		}
		c.Rejected[game.ErrorCode(err)]++
	case res.Matched:
		c.Matches++
	default:
		c.Misses++
	}
}

// OnEvent implements game.EventSubscriber
func (s *StatsCollector) OnEvent(event game.GameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := event.(type) {
	case game.GameStartedEvent:
		s.gamesStarted++
	case game.GameEndedEvent:
		s.gamesFinished++
		s.caller(ev.Caller).Finished++
	}
}

// Snapshot returns a copy of the statistics ordered by caller
func (s *StatsCollector) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		GamesStarted:  s.gamesStarted,
		GamesFinished: s.gamesFinished,
		Callers:       make([]CallerStatistics, 0, len(s.callers)),
	}
	for _, c := range s.callers {
		cp := *c
		if c.Attempts > 0 {
			cp.Accuracy = float64(c.Matches) / float64(c.Attempts)
		}
		if c.Rejected != nil {
			cp.Rejected = make(map[string]int, len(c.Rejected))
			for code, n := range c.Rejected {
				cp.Rejected[code] = n
			}
		}
		snap.Callers = append(snap.Callers, cp)
	}
	sort.Slice(snap.Callers, func(i, j int) bool {
		return snap.Callers[i].Caller < snap.Callers[j].Caller
	})
	return snap
}
