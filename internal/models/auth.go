package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type TokenClaims struct {
	Type       string `json:"type"` // "access" or "refresh"
	UserID     string `json:"user_id"`
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the access/refresh token pair minted on login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}
