// Package auth inspects access tokens issued by the GlobalAssist backend.
//
// The backend hands out opaque tokens today; when it issues JWTs the client
// can skip a validation round-trip for tokens that have already expired.
// Signatures are never verified here: only the backend decides validity.
package auth

import "github.com/golang-jwt/jwt/v5"

// Claims encodes the JWT claims embedded into access tokens.
type Claims struct {
	UserID    string `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ,omitempty"`
	Tier      string `json:"tier,omitempty"`

	jwt.RegisteredClaims
}
