package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/api/validators"
	"github.com/lensportal/lensportal-backend/internal/registrations"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

type submitRegistrationRequest struct {
	Email       string  `json:"email" validate:"required,email,max=254"`
	CompanyName string  `json:"company_name" validate:"required,max=200"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// SubmitRegistration accepts a public signup request.
func SubmitRegistration(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "registration")
			return
		}
		var payload submitRegistrationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Submit(r.Context(), registrations.SubmitInput{
			Email:       payload.Email,
			CompanyName: payload.CompanyName,
			Phone:       payload.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func AdminListRegistrations(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "registration")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParseRegistrationStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), identity, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// approveRegistrationRequest keeps the admin console's field names. The
// company name and phone are accepted for compatibility; the stored request
// is authoritative.
type approveRegistrationRequest struct {
	RequestID   string  `json:"requestId" validate:"required,uuid"`
	Email       string  `json:"email" validate:"omitempty,email"`
	CompanyName string  `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

type approveRegistrationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
	Email   string `json:"email"`
	UserID  string `json:"user_id,omitempty"`
}

func AdminApproveRegistration(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "registration")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload approveRegistrationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuid.Parse(payload.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid requestId"))
			return
		}

		result, err := svc.Approve(r.Context(), identity, registrations.ApproveInput{RequestID: requestID, Email: payload.Email})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := approveRegistrationResponse{Success: true, Email: result.Email, Warning: result.Warning}
		if result.Profile != nil {
			resp.UserID = result.Profile.ID
		}
		if resp.Warning == "" {
			resp.Message = "Registration approved. A password setup email was sent to " + result.Email + "."
		}
		responses.WriteSuccess(w, resp)
	}
}

type rejectRegistrationRequest struct {
	RequestID string `json:"requestId" validate:"required,uuid"`
	Reason    string `json:"reason" validate:"required,max=1000"`
}

func AdminRejectRegistration(svc registrations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "registration")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload rejectRegistrationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuid.Parse(payload.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid requestId"))
			return
		}
		request, err := svc.Reject(r.Context(), identity, requestID, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
