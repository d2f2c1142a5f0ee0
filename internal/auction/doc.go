// Package auction runs the per-session observation state machine.
//
// A Machine owns one SessionState for the lifetime of one auction session.
// Each tick reads the status token and the lot identity, carries the last
// numeric price forward across empty polls, discards it when the lot changes,
// and turns "Sold!"/"Approval!" into a closing event for the current lot at
// the carried price. Events pass the session guard before reaching the
// recorder, so a closing token that persists for several polls is recorded
// once. A closing token only counts once the current lot has shown some other
// status, so the previous lot's lingering result never closes the next lot.
package auction
