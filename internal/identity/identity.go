// Package identity defines the contract of the external identity provider.
package identity

import "context"

// Principal is an authenticated user as reported by the provider.
type Principal interface {
	// UID is the provider's stable user id.
	UID() string
	// Email is the display string for the user.
	Email() string
	// FreshToken returns a bearer token valid for at least the next backend call.
	// It may hit the network.
	FreshToken(ctx context.Context) (string, error)
}

// Provider is the identity provider the session layer delegates to.
type Provider interface {
	// SignInWithPassword asks the provider to authenticate. The new user is reported
	// through OnAuthStateChanged listeners, not by the return value.
	SignInWithPassword(ctx context.Context, email, password string) error
	// SignOut drops the current user; listeners then observe nil.
	SignOut(ctx context.Context) error
	// OnAuthStateChanged registers fn for every state change, including the initial load.
	// fn receives nil when nobody is signed in.
	OnAuthStateChanged(fn func(Principal)) (unsubscribe func())
}
