package jwt

import (
	jwtLib "github.com/golang-jwt/jwt/v5"
)

// Claims identifies the client of the texpad API.
type Claims struct {
	jwtLib.RegisteredClaims
	Username string `json:"username"`
}
