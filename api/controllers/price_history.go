package controllers

import (
	"net/http"

	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/api/validators"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

func ListPriceHistory(svc pricehistory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "price history")
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
		changeType, err := validators.ParseQueryEnum(r, "change_type", enums.ParsePriceChangeType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), identity, pricehistory.ListInput{
			ProductID:  productID,
			ClientID:   r.URL.Query().Get("client_id"),
			ChangeType: changeType,
			Pagination: pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
