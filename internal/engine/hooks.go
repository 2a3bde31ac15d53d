package engine

import "github.com/overtimegame/server/internal/config"

// Directive tells the engine what happens after a completed turn.
type Directive int

const (
	Continue Directive = iota
	LunchBreak
	EndDay
)

func (d Directive) String() string {
	switch d {
	case LunchBreak:
		return "LUNCH_BREAK"
	case EndDay:
		return "END_DAY"
	default:
		return "CONTINUE"
	}
}

// TurnHook is consulted once per completed player/enemy cycle.
type TurnHook interface {
	OnTurnCompleted(turn int) Directive
}

// TurnHookFunc adapts a function to TurnHook.
type TurnHookFunc func(turn int) Directive

// OnTurnCompleted implements TurnHook.
func (f TurnHookFunc) OnTurnCompleted(turn int) Directive { return f(turn) }

// ScriptedHook fires a lunch break and an end of day on fixed turn numbers.
// Zero disables either trigger. Each one fires at most once per round.
type ScriptedHook struct {
	LunchTurn  int
	EndDayTurn int
}

// OnTurnCompleted implements TurnHook.
func (h ScriptedHook) OnTurnCompleted(turn int) Directive {
	switch {
	case h.EndDayTurn > 0 && turn == h.EndDayTurn:
		return EndDay
	case h.LunchTurn > 0 && turn == h.LunchTurn:
		return LunchBreak
	}
	return Continue
}

// HookFor builds the scripted hook of a rule profile. Profiles without
// scripted turns get a hook that always continues.
func HookFor(r config.Rules) TurnHook {
	if r.LunchTurn == 0 && r.EndDayTurn == 0 {
		return TurnHookFunc(func(int) Directive { return Continue })
	}
	return ScriptedHook{LunchTurn: r.LunchTurn, EndDayTurn: r.EndDayTurn}
}
