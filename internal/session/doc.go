// Package session maps externally supplied session identifiers to internal
// conversation thread identifiers.
//
// A session ID is an opaque UUID chosen by the caller; a thread ID is a
// monotonically increasing positive integer allocated on first sight and
// stable for the lifetime of the process. The Registry owns this mapping
// exclusively: entries are append-only and never rebound or evicted.
package session
