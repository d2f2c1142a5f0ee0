// Package diag captures post-mortem material: page source dumps (local files
// and, optionally, S3) and a JSONL log of closings that could not be persisted.
package diag
