package server

import "net/http"

// Middleware decorates a handler; see [BasicRouter.Use] for ordering.
type Middleware func(http.Handler) http.Handler

// Handler serves a fixed set of mux patterns, such as an OAuth callback that answers on one path.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router is what the site registers its routes on.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	HandleFunc(method, path string, fn http.HandlerFunc)
	Handler(handler Handler)
}

var _ Router = (*BasicRouter)(nil)
