// Package ratelimit throttles authentication traffic per client key and
// route class.
//
// Each route class carries a fixed-window budget. A client key (normally
// the caller's IP) gets Budget.Max requests per Budget.Window; requests past
// the budget are rejected with a retry-after hint that the API layer turns
// into a Retry-After header.
//
// MemoryLimiter serves single-node deployments and tests; RedisLimiter
// shares counters across replicas.
package ratelimit
