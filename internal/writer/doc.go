// Package writer turns accepted closing events into persisted records.
//
// Each event becomes exactly one store upsert. Accepted records are published
// to subscribers; duplicates are dropped; store failures are logged and
// appended to the exception log, and the event is dropped. Nothing here
// blocks or aborts the observation loop.
package writer
