// Package auth owns the OAuth2 token lifecycle: it stores the current token,
// hands out tokens that are valid for at least the expiry margin, and
// coalesces concurrent refreshes into a single token endpoint round-trip.
//
// The Manager has a blocking (Token) and a channel based (TokenAsync) entry
// point over the same state machine:
//
//	Unauthenticated --Login--> Authenticated --near expiry--> Refreshing
//	Refreshing --success--> Authenticated
//	Refreshing --refresh token rejected--> Unauthenticated
//
// LoginFlow is an optional browser based source of authorization grants.
package auth
