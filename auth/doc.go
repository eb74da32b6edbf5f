// Package auth decides whether a request may read or publish events.
//
// A RequestAuthorizer extracts a credential from the request (bearer header,
// cookie or query parameter) and asks each configured TokenValidator in turn.
// The first validator that accepts the token wins and its Principal is
// stored on the request context.
//
//	authz, err := auth.NewRequestAuthorizer(cfg, jwtSvc, log)
//	handler := sse.NewHandler(feed, authz)
package auth
