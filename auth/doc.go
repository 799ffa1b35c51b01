// Package auth holds the authentication configuration and the token
// validation contract shared by the HTTP layer.
//
// Subpackages:
//
//   - auth/jwt       access token issuing and validation
//   - auth/password  password hashing and random token generation
//   - auth/authctx   request context propagation of validated claims
//   - auth/oidc      ID token verification for federated login
//
// Authorization by group membership lives in package authz.
package auth
