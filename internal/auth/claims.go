package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the session token claims. UserID duplicates the subject under
// the name the web client reads.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}
