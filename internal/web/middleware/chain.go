// Package middleware holds the HTTP middleware of the documentation server.
package middleware

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middleware. The first middleware added runs
// first.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use adds middleware to the chain. Nil middleware is ignored so optional
// stages can be passed unconditionally.
func (c *Chain) Use(middlewares ...Middleware) *Chain {
	for _, m := range middlewares {
		if m != nil {
			c.middlewares = append(c.middlewares, m)
		}
	}
	return c
}

// Append returns a new chain with middlewares added after the current ones.
// The receiver is not modified.
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	out := &Chain{middlewares: make([]Middleware, len(c.middlewares), len(c.middlewares)+len(middlewares))}
	copy(out.middlewares, c.middlewares)
	return out.Use(middlewares...)
}

// Then wraps handler with every middleware in the chain.
func (c *Chain) Then(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// ThenFunc wraps an http.HandlerFunc with the middleware chain
func (c *Chain) ThenFunc(handlerFunc http.HandlerFunc) http.Handler {
	return c.Then(handlerFunc)
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}
