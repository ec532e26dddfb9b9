// Package gateway is the core of a trading order gateway that authenticates
// users against an external identity provider while keeping a local mirror of
// every account.
//
// Identity mirror:
//   - IdentityMirror writes the local user first and then creates the same
//     identity in the IdentityProvider. When the provider fails the local row
//     is deleted again, so a registration either exists in both places or in
//     neither.
//   - Enabling, disabling and role changes are applied locally and mirrored to
//     the provider best-effort; mirror failures are logged and recorded as
//     activity events.
//
// Authentication:
//   - Authenticator checks the provider before the local store and only
//     reports a disabled account after the password was accepted.
//
// Orders:
//   - OrderManager receives the acting user explicitly. Cancellation checks
//     ownership before status and persists through a compare-and-set on the
//     current status.
//
// Errors:
//   - Every failure is a go-errors value carrying one of the TextCode
//     constants. ResponseFor maps it to a client or server response; anything
//     unclassified is reported as INTERNAL_ERROR without leaking details.
package gateway
