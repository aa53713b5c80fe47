// Package jwt reads and mints portal access tokens.
//
// Clients never hold the API's signing keys, so [Inspect] parses claims
// without verifying the signature; its results are hints (expiry, role)
// and never authorize anything. [Issuer] signs tokens for the in-process
// fake portal API used by tests and local development.
package jwt
