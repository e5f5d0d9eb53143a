// Package server provides HTTP routing, middleware, and the JSON API for the library web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/library/{id}"), so a path
// can carry several methods and the mux answers 405 for the rest.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// The cover image proxy, catalog proxy, and app shell are registered this way.
//
// # Middleware
//
//   - [Logging] logs and counts every request
//   - [Recover] renders {"error":"internal","actions":["retry","home"]} when a handler panics
//   - [CORS] answers preflight requests for browser clients
//   - [RequireAuth] verifies the bearer token and touches the session's idle monitor; revoked or idle
//     sessions get a 401
//
// # Routes
//
//	POST   /api/auth/register, /api/auth/login
//	POST   /api/auth/password, /api/auth/logout     (auth)
//	GET    /api/library, POST /api/library          (auth)
//	GET    /api/library/{id}, PATCH, DELETE         (auth)
//	PUT    /api/library/{id}/progress               (auth)
//	GET    /api/goals, POST /api/goals              (auth)
//	DELETE /api/goals/{id}                          (auth)
//	GET    /api/achievements, /api/stats            (auth)
//	GET    /covers/{id}/{file}, /api/catalog/...
//	GET    /health, /metrics
//	GET    /, /manifest.webmanifest, /static/...
//
// # Lifecycle
//
// [Server.Serve] runs the listener and a session gauge under one errgroup and shuts down gracefully
// when its context is canceled.
package server
