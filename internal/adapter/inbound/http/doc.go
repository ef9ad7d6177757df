// Package http exposes the session-guarded API over HTTP.
//
// # Endpoints
//
//	POST /api/login          - {"username","password"}; marks the session logged in
//	POST /api/logout         - invalidates the session
//	GET  /api/session-check  - guarded; reports the logged-in user
//	GET  /api/products       - guarded; lists products, optional ?filter=<CEL>
//	GET  /api/products/{id}  - guarded; one product, 404 when unknown
//	GET  /health             - component health (200 or 503)
//	GET  /metrics            - Prometheus metrics
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. RequestIDMiddleware - request ID and request-scoped logger
//  2. RealIPMiddleware - client address for login throttling
//  3. MetricsMiddleware - request count and duration per route
//  4. SessionMiddleware (/api only) - resolves or issues the session cookie
//  5. LocaleMiddleware (/api only) - negotiates Accept-Language
//
// Guarded routes bind their operation with guard.Guard.Protect and hand it the
// session and locale; the guard decides whether the operation runs and shapes
// the JSON response.
package http
