// Package session persists conversation transcripts.
//
// Live sessions are stored as one JSONL file per session key; each
// line is a single appended message. Completed runs can additionally
// be archived into a SQLite index that supports keyword search across
// transcripts. The in-memory conversation is the source of truth
// during a run; persistence failures are reported but never mutate it.
package session
