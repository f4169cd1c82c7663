package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// Principal is the caller established from a verified bearer token.
type Principal struct {
	UserID   string
	Email    string
	Role     enums.Role
	IssuedAt time.Time
}

// Verifier turns a raw bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Role   enums.Role
}

// AccessTokenClaims mirrors the identity provider's claim shape: the subject is
// the account uid and role is a custom claim.
type AccessTokenClaims struct {
	Email string     `json:"email"`
	Role  enums.Role `json:"role"`
	jwt.RegisteredClaims
}
