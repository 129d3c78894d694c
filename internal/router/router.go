// Package router mounts Ponto's JSON API on http.ServeMux.
//
// Patterns use the Go 1.22 "METHOD /path/{wildcard}" syntax and handlers
// read wildcards with r.PathValue. Middleware given to New applies to
// every route; Group layers more on a subset, e.g. staff-only admin routes.
package router

import (
	"net/http"
	"slices"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Router registers routes on a shared mux. Routers returned by Group share
// the mux and the route list with their parent.
type Router struct {
	mux    *http.ServeMux
	chain  []Middleware
	routes *[]string
}

// New creates a Router whose middleware runs, in order, before every route.
func New(middleware ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		chain:  middleware,
		routes: new([]string),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Put(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPut, pattern, h, mw...)
}

func (r *Router) Patch(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPatch, pattern, h, mw...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, mw...)
}

// Handle registers h for method and pattern behind the router's middleware
// followed by mw. Registering the same route twice panics, as ServeMux does.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	route := method + " " + pattern
	r.mux.Handle(route, r.wrap(h, mw))
	*r.routes = append(*r.routes, route)
}

// Group returns a Router that adds mw after this router's middleware.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		chain:  append(slices.Clone(r.chain), mw...),
		routes: r.routes,
	}
}

// Routes lists the registered "METHOD /pattern" routes in registration order.
func (r *Router) Routes() []string {
	return slices.Clone(*r.routes)
}

// wrap builds the chain so the first middleware sees the request first.
func (r *Router) wrap(h http.Handler, mw []Middleware) http.Handler {
	chain := append(slices.Clone(r.chain), mw...)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
