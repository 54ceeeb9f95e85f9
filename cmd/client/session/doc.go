// Package session is the client SDK for the library backend's auth API.
//
// Cache persists a snapshot of the current session through a pluggable
// Storage. Manager keeps the session alive: it refreshes proactively when
// expiry is near, deduplicates concurrent refreshes, and falls back to a
// local logout when the server will not extend the session. Gateway wraps
// an http.Client with the session cookie jar and hands 401 responses to
// the Manager, which refreshes and replays the call with backoff before
// giving up.
package session
