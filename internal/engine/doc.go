// Package engine runs room-scoped wagering games inside chat rooms.
//
// An Engine owns a Registry that maps each room to at most one live
// Session. Every Session is a single actor: commands, timer expiries and
// ledger confirmations are funnelled through one inbox and applied one at a
// time, so no two mutations of a session ever run concurrently.
//
// # Reservations
//
// Joining the elimination game or betting on the comparison game requires
// moving credits through the external Ledger, which is slow and
// asynchronous. Each request is therefore recorded synchronously as a
// pending Participant before the ledger is contacted. A second request from
// the same user sees the pending entry and is rejected, which is what
// prevents double charges while the round-trip is in flight. The ledger
// result is posted back to the actor and either confirms the entry or
// removes it.
//
// # Timers
//
// Phase deadlines use a quartz.Clock so tests can drive them with a mock
// clock. Every timer is tagged with the phase epoch it was armed in and is a
// no-op if the session has moved on by the time it fires.
package engine
