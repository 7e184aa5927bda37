// Package server provides HTTP routing, middleware, sessions and the command line OAuth callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers "METHOD /path/{wildcard}" patterns on [http.ServeMux],
// so handlers read path values with [http.Request.PathValue].
//
// # Middleware
//
// [RequestLogger], [Recoverer] and [SecurityHeaders] wrap every route. [HTTPMetrics] exports request
// counters to Prometheus labelled by route pattern. [ClientLimiter] throttles a route per client address.
//
// # Sessions
//
// [Sessions] signs an identity token into the auth_token cookie and keeps flashes in a separate
// encrypted cookie. [Sessions.Authenticate] attaches the user to the request context; [RequireUser]
// and [RequireUserJSON] guard routes that need one.
//
// # OAuth Callback Handler
//
// [OAuthHandler] accepts exactly one authorization code callback, checks its state and exchanges the code.
// [AwaitAuthorization] wraps it in a short-lived local server for the "library authorize" command.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
