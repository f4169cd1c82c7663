package controllers

import (
	"net/http"

	"github.com/lensportal/lensportal-backend/api/middleware"
	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/internal/authz"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

// callerOrReject writes 401 and returns nil when the request carries no identity.
func callerOrReject(w http.ResponseWriter, r *http.Request, logg *logger.Logger) *authz.Identity {
	identity := middleware.IdentityFromContext(r.Context())
	if err := authz.RequireAuthenticated(identity); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil
	}
	return identity
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
