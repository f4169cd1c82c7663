package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/api/validators"
	"github.com/lensportal/lensportal-backend/internal/pricing"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

func ListClientPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "pricing")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		prices, err := svc.List(r.Context(), identity, pricing.ListInput{
			ClientID:  r.URL.Query().Get("client_id"),
			ProductID: productID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prices)
	}
}

type setClientPriceRequest struct {
	ClientID           string           `json:"client_id"`
	ProductID          string           `json:"product_id" validate:"required,uuid"`
	CustomPrice        *decimal.Decimal `json:"custom_price,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	Reason             *string          `json:"reason,omitempty" validate:"omitempty,max=500"`
	Version            *int             `json:"version,omitempty"`
}

func SetClientPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "pricing")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload setClientPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseURLUUID(payload.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := svc.Set(r.Context(), identity, pricing.SetInput{
			ClientID:           payload.ClientID,
			ProductID:          productID,
			CustomPrice:        payload.CustomPrice,
			DiscountPercentage: payload.DiscountPercentage,
			Reason:             payload.Reason,
			ExpectedVersion:    payload.Version,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

func DeleteClientPrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "pricing")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "priceId"), "priceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), identity, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func ClientPriceSummary(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "pricing")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		summary, err := svc.Summary(r.Context(), identity, r.URL.Query().Get("client_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type bulkAdjustRequest struct {
	ClientID   string      `json:"client_id"`
	Percentage json.Number `json:"percentage"`
}

// BulkAdjustClientPrices shifts every override a client holds by one percentage.
func BulkAdjustClientPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "pricing")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload bulkAdjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		percentage, err := payload.Percentage.Float64()
		if payload.Percentage == "" || err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "percentage must be a number"))
			return
		}
		result, err := svc.ApplyGlobalAdjustment(r.Context(), identity, payload.ClientID, percentage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
