// Package game implements the memory-matching game engine.
//
// The main type is Engine, which owns the deck, the active-game flag and the
// per-caller score table. State changes only through Start and AttemptMatch;
// every successful transition publishes a signal on the engine's EventBus.
//
// # Basic Usage
//
//	e, err := game.NewEngine()
//	if err != nil {
//	    return err
//	}
//	if _, err := e.Start("alice"); err != nil {
//	    return err
//	}
//	res, err := e.AttemptMatch("alice", 0, 1)
//	// res.Matched reports whether the cards formed a pair
//
// # Deterministic Testing
//
// The default deck uses the fixed pattern [1,1,2,2,...]. A seeded shuffle is
// available through WithShuffleSeed, and event timestamps come from an
// injectable quartz.Clock:
//
//	clock := quartz.NewMock(t)
//	e, _ := game.NewEngine(game.WithClock(clock), game.WithShuffleSeed(42))
//
// # Replay
//
// By default a completed deck stays matched forever, so later games cannot
// score. WithResetOnStart clears matched flags on every Start.
//
// # Concurrency
//
// A single mutex serializes all operations. Signals are delivered while the
// lock is held so subscribers observe them in state order; subscribers must
// not call back into the engine from OnEvent.
package game
