// Package authz authorizes callers by group membership.
//
// A Guard holds a non-empty set of group names fixed at route setup and
// lets a caller through when the caller belongs to at least one of them.
// Membership is read on every check through a GroupSource, so a change in
// membership takes effect on the next request.
//
//	guard := authz.MustGuard(identities, "test-group")
//	if err := guard.Check(ctx, identityID); err != nil { ... }
package authz
