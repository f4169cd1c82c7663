package middleware

import (
	"context"

	"github.com/lensportal/lensportal-backend/internal/authz"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity injects the verified caller into the context.
func WithIdentity(ctx context.Context, identity *authz.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext returns the caller set by Auth, or nil.
func IdentityFromContext(ctx context.Context) *authz.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*authz.Identity); ok {
		return v
	}
	return nil
}

func UserIDFromContext(ctx context.Context) string {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.UserID
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if identity := IdentityFromContext(ctx); identity != nil {
		return string(identity.Role)
	}
	return ""
}
