// Package database provides the PostgreSQL connection pool, embedded schema
// migrations, and the Postgres-backed closing store.
//
// Closings are append-only. Same-day uniqueness on (lot_number, price,
// outcome) is enforced by a unique index; inserts use ON CONFLICT DO NOTHING
// and a zero row count reports a duplicate.
package database
