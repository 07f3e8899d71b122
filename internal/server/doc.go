// Package server provides HTTP routing, middleware, and the OAuth callback used by "auth google".
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recoverer] are the stock middleware.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter,
// hands the code to a [CodeExchanger] and sends the resulting id token through a channel.
// Only one callback is processed.
//
// The CLI starts a temporary server on localhost:3000, opens the browser and shuts the
// server down once the id token arrives. The token is then traded for a storefront session.
package server
