// Package session implements server-authoritative session state for the
// library backend.
//
// Sessions are opaque server-side records keyed by random IDs. Each user
// holds at most a configured number of live sessions; creating one past the
// cap evicts the least-recently-refreshed session, preferring a stale
// session on the same device before touching other devices. Refresh extends
// a live session and never resurrects an expired one. A background sweeper
// hard-deletes expired rows.
//
// Store abstracts persistence. MemoryStore backs tests and single-node
// deployments; PostgresStore is the production implementation.
package session
