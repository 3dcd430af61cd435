// Package server provides the HTTP routing, middleware, and redirect-capture
// handler backing the short-lived OAuth callback listener.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] captures the authorization code from the provider's
// browser redirect. It validates the state parameter (CSRF protection) and
// signals completion through a single-shot channel; the token exchange itself
// belongs to the auth package.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When an authorization flow starts, a temporary HTTP server binds a
// localhost port (8888 by default, falling forward on conflict), serves the
// /callback redirect once, and shuts down as soon as the flow completes or
// times out.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
