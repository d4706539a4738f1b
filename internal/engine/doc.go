// Package engine implements the terminal's Synchronization Engine.
//
// The engine is the only component that talks to the remote for attendance
// delivery and reference data. It runs in two states, IDLE and RUNNING; an
// atomic busy flag guards the transition so at most one cycle executes at a
// time. Triggers that arrive while a cycle is running are dropped, not
// queued: every cycle re-reads the store, so the next trigger picks up any
// residual work.
//
// A cycle has two phases:
//
// Push: PENDING entries are read in creation order and sent in fixed-size
// batches, one outstanding call at a time. A failed batch stops the phase;
// later entries stay PENDING so no ordering gap is ever created.
//
// Pull: the kiosk config and then the organization roster are fetched. Only
// when both succeed are configuration, terminal record and employee cache
// replaced, in a single transaction.
//
// The clock-action path writes the entry durably first (RecordLocally) and
// then attempts delivery in the background (AttemptImmediatePush). The
// attempt goes through the same push phase, so an entry only ever reaches
// SYNCED one way.
package engine
