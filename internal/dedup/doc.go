// Package dedup implements the per-session closing guard.
//
// The feed keeps rendering "Sold!" or "Approval!" for several polling cycles
// before the next lot comes up, so one close shows up as a burst of closing
// ticks. The Guard accepts a lot key at most once per session:
//   - keys are session-scoped; a Guard is created with each session and dropped with it
//   - cross-session duplicates (same lot_number, price, outcome on the same day)
//     are rejected by the ResultStore, not here
package dedup
