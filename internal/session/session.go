// Package session holds the immutable per-login context: the bearer token
// used for the channel and REST calls, and the identity of the current user.
// A Context is built once at login and passed explicitly to the router and
// action pipeline; logout discards it and builds a new one.
package session

import "errors"

// Context is the immutable session context.
type Context struct {
	Token    string
	UserID   string
	Username string
}

// New validates and builds a session context.
func New(token, userID, username string) (*Context, error) {
	if token == "" {
		return nil, errors.New("session: empty token")
	}
	if userID == "" {
		return nil, errors.New("session: empty user id")
	}
	return &Context{Token: token, UserID: userID, Username: username}, nil
}

// IsSelf reports whether the given user id is the current user.
func (c *Context) IsSelf(userID string) bool {
	return userID == c.UserID
}
