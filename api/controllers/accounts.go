package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/api/validators"
	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/users"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

// Me returns the caller's profile.
func Me(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		profile, err := svc.Me(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func AdminListClients(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParseAccountStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clients, err := svc.ListClients(r.Context(), identity, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, clients)
	}
}

type preAuthorizeRequest struct {
	Email       string  `json:"email" validate:"required,email,max=254"`
	CompanyName string  `json:"company_name" validate:"required,max=200"`
	ContactName *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

type preAuthorizeResponse struct {
	Profile *users.ProfileDTO `json:"profile"`
	Warning string            `json:"warning,omitempty"`
}

// AdminPreAuthorizeClient provisions an approved client directly.
func AdminPreAuthorizeClient(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload preAuthorizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.PreAuthorize(r.Context(), identity, users.PreAuthorizeInput{
			Email:       payload.Email,
			CompanyName: payload.CompanyName,
			ContactName: payload.ContactName,
			Phone:       payload.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, preAuthorizeResponse{Profile: result.Profile, Warning: result.Warning})
	}
}

func AdminSuspendUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return accountTransition(svc, logg, users.Service.Suspend)
}

func AdminReactivateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return accountTransition(svc, logg, users.Service.Reactivate)
}

type transitionFunc func(users.Service, context.Context, *authz.Identity, string) (*users.ProfileDTO, error)

func accountTransition(svc users.Service, logg *logger.Logger, apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "user")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		userID := chi.URLParam(r, "userId")
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "userId is required"))
			return
		}
		profile, err := apply(svc, r.Context(), identity, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
