// Package jwt issues and verifies the session access tokens carried on the provider's
// auth-change stream.
//
// # Architecture boundaries
//
// This package owns signing-key handling and claim validation. It does NOT decide
// what a failed verification means for the client session: the provider maps any
// parse failure to a malformed event.
package jwt
