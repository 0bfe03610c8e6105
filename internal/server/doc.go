// Package server provides HTTP routing, middleware, the OAuth callback and the local companion API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering. Paths may use
// ServeMux wildcards such as /api/colors/{id}.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), hands the code to a [CodeExchanger]
// and sends the result through a channel. It only processes one callback.
//
// # Companion API
//
// [APIHandler] exposes the stored session and the color cache as JSON:
//
//	GET  /api/auth/tokens
//	POST /api/auth/refresh
//	POST /api/auth/logout
//	GET  /api/colors/{id}?url=
//
// [Server.Run] serves a router until its context is cancelled and then shuts down gracefully.
package server
