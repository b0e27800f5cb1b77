// Package oauth implements the OAuth 2.0 pieces of the brokerage API:
// the authorization code grant used at login, the refresh token grant,
// and the Token type shared by the token manager and its store.
//
// # Core Components
//
//   - Token: access/refresh token pair with expiry arithmetic
//   - Client: token endpoint calls and authorization URL construction
//   - AuthError: refusals that need user action (InvalidCredentials,
//     ReauthorizationRequired), comparable with errors.Is
//   - ParseClaims: unverified JWT claim inspection for display
//
// Client holds no token state. Deciding when to refresh, and making sure
// concurrent callers share one refresh, is the job of internal/auth.
package oauth
