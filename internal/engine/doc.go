// Package engine runs a match: the turn state machine, card resolution and
// the enemy decision loop.
//
// ARCHITECTURAL RULE: every operation is synchronous. Pacing between enemy
// steps belongs to the caller (see internal/scheduler); the engine only
// appends presentation events to the EventLog.
package engine
