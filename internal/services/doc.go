// Package services implements the HTTP clients for the storefront backend.
//
// # Transport
//
// [APIService] is the single transport. It adds the Authorization header to every
// request whose path contains "/api/" while a token exists, and classifies failures
// into [APIError] values:
//   - 401 with body {"error":"TOKEN_EXPIRED"}: matches [shared.ErrTokenExpired]
//   - any other 401: matches [shared.ErrNotAuthenticated]
//   - any other non-2xx: matches [shared.ErrAPIRequest]
//
// Only TOKEN_EXPIRED is intercepted. The request is parked on the installed [Renewer]
// (see session.Coordinator) and replayed once with the new token. A failed renewal
// returns an error matching both [shared.ErrRefreshFailed] and the original [APIError].
//
// An optional client side rate limit (golang.org/x/time/rate) applies to every call.
//
// # Clients
//
// [AuthService] covers login, Google login, refresh and logout under /usuarios.
// None of these calls are intercepted.
//
// [CartService] covers /carrito and translates between the backend's wire form
// ({idCarrito, items[{idItem, tipoProducto, idCancion, idAlbum, precio}], ...}) and
// [models.Cart].
//
// [GoogleService] implements [OAuthService] for the Google authorization code flow.
package services
