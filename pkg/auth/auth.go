// Package auth carries the already-authenticated caller identity.
// Authentication and authorization policy live outside this layer.
package auth

import "net/http"

// Context is the identity the transport established for a request.
type Context struct {
	// ProjectID is the tenant the caller acts for.
	ProjectID string
	// UserID is the authenticated user.
	UserID string
	// IsAdmin grants the administrative request surface.
	IsAdmin bool
}

// FromRequest reads the identity headers set by the authenticating
// front end.
func FromRequest(r *http.Request) *Context {
	ctx := &Context{
		ProjectID: r.Header.Get("X-Project-ID"),
		UserID:    r.Header.Get("X-User-ID"),
	}

	for _, role := range r.Header.Values("X-Roles") {
		if role == "admin" {
			ctx.IsAdmin = true
		}
	}

	return ctx
}
