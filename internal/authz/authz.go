// Package authz holds the role checks shared by middleware and services.
// Admin status comes only from the identity provider's role claim.
package authz

import (
	"strings"

	"github.com/lensportal/lensportal-backend/pkg/auth"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
	Role   enums.Role
}

func FromPrincipal(p *auth.Principal) *Identity {
	if p == nil {
		return nil
	}
	return &Identity{UserID: p.UserID, Email: p.Email, Role: p.Role}
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == enums.RoleAdmin
}

// RequireAuthenticated fails with UNAUTHORIZED when no identity is present.
func RequireAuthenticated(identity *Identity) error {
	if identity == nil || strings.TrimSpace(identity.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireAdmin allows only callers whose role claim is admin.
func RequireAdmin(identity *Identity) error {
	if err := RequireAuthenticated(identity); err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// RequireSelfOrAdmin allows admins and the owner of the resource.
func RequireSelfOrAdmin(identity *Identity, ownerID string) error {
	if err := RequireAuthenticated(identity); err != nil {
		return err
	}
	if identity.IsAdmin() {
		return nil
	}
	if strings.TrimSpace(ownerID) == "" || identity.UserID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "access to another client's data is not allowed")
	}
	return nil
}

// ScopeClientID resolves which client a request is about. Clients default to
// themselves; admins must name one when required is set.
func ScopeClientID(identity *Identity, requested string, required bool) (string, error) {
	if err := RequireAuthenticated(identity); err != nil {
		return "", err
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		if identity.IsAdmin() {
			if required {
				return "", pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
			}
			return "", nil
		}
		return identity.UserID, nil
	}
	if err := RequireSelfOrAdmin(identity, requested); err != nil {
		return "", err
	}
	return requested, nil
}
