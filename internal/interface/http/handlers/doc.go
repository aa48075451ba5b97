// Package handlers contains the reusable HTTP pieces of the service:
// dependency health checks, bearer-token identity, per-caller rate limiting
// and the JSON response envelope.
//
// # Health Checks
//
//	checker := handlers.NewHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.PingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.PingCheck(cache))
//
// # Identity
//
// Authenticate verifies "Authorization: Bearer <jwt>" and stores the subject
// as the caller via identity.WithUserID. Anonymous requests pass through;
// operations that need a caller fail with Unauthenticated.
//
// # Rate Limiting
//
// RateLimiter keeps a golang.org/x/time/rate bucket per user (or per remote
// address for anonymous callers) and answers 429 with Retry-After.
package handlers
