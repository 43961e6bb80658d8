// Package common contains shared constants and sentinel errors used across
// SimpleAuth components.
package common

// AuthorizationHeaderName is the HTTP header carrying the access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the expected scheme prefix of the Authorization header.
const BearerPrefix = "Bearer "

// RefreshTokenByteLength is the entropy, in bytes, of a generated refresh
// token value before encoding.
const RefreshTokenByteLength = 64
