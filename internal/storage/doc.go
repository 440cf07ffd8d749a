// Package storage keeps an append-only journal of polling cycles.
//
// The journal is for operators: it is never read back to restore the poll
// cursor, which always starts at "now" on process start.
package storage
