package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/api/responses"
	"github.com/lensportal/lensportal-backend/api/validators"
	"github.com/lensportal/lensportal-backend/internal/catalog"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
	"github.com/lensportal/lensportal-backend/pkg/types"
)

type categoryRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Slug         *string `json:"slug" validate:"omitempty,max=120"`
	Family       *string `json:"family"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,min=0"`
}

func (p categoryRequest) family() (*enums.CategoryFamily, error) {
	if p.Family == nil {
		return nil, nil
	}
	family, err := enums.ParseCategoryFamily(*p.Family)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid family")
	}
	return &family, nil
}

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		categories, err := svc.ListCategories(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func CreateCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload categoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		family, err := payload.family()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Name == nil || family == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "name and family are required"))
			return
		}
		input := catalog.CreateCategoryInput{Name: *payload.Name, Family: *family}
		if payload.Slug != nil {
			input.Slug = *payload.Slug
		}
		if payload.DisplayOrder != nil {
			input.DisplayOrder = *payload.DisplayOrder
		}
		category, err := svc.CreateCategory(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func UpdateCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "categoryId"), "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload categoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		family, err := payload.family()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := svc.UpdateCategory(r.Context(), identity, id, catalog.UpdateCategoryInput{
			Name:         payload.Name,
			Slug:         payload.Slug,
			Family:       family,
			DisplayOrder: payload.DisplayOrder,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, category)
	}
}

func DeleteCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "categoryId"), "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), identity, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		input, err := parseProductListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListProducts(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseProductListQuery(r *http.Request) (catalog.ListProductsInput, error) {
	var input catalog.ListProductsInput
	var err error
	if input.CategoryID, err = validators.ParseQueryUUID(r, "category_id"); err != nil {
		return input, err
	}
	if input.Family, err = validators.ParseQueryEnum(r, "family", enums.ParseCategoryFamily); err != nil {
		return input, err
	}
	if input.Active, err = validators.ParseQueryBool(r, "active"); err != nil {
		return input, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return input, err
	}
	input.Search = validators.SanitizeString(r.URL.Query().Get("search"), 100)
	input.Pagination = pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
	return input, nil
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), identity, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type productRequest struct {
	Code           *string               `json:"code" validate:"omitempty,min=1,max=64"`
	Name           *string               `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string               `json:"description,omitempty"`
	CategoryID     *string               `json:"category_id" validate:"omitempty,uuid"`
	BasePrice      *decimal.Decimal      `json:"base_price_usd"`
	IsActive       *bool                 `json:"is_active,omitempty"`
	Specifications *types.Specifications `json:"specifications,omitempty"`
	Reason         *string               `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (p productRequest) categoryID() (*uuid.UUID, error) {
	if p.CategoryID == nil {
		return nil, nil
	}
	id, err := validators.ParseURLUUID(*p.CategoryID, "category_id")
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := payload.categoryID()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Code == nil || payload.Name == nil || categoryID == nil || payload.BasePrice == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code, name, category_id and base_price_usd are required"))
			return
		}
		input := catalog.CreateProductInput{
			Code:        *payload.Code,
			Name:        *payload.Name,
			Description: payload.Description,
			CategoryID:  *categoryID,
			BasePrice:   *payload.BasePrice,
			IsActive:    payload.IsActive,
		}
		if payload.Specifications != nil {
			input.Specifications = *payload.Specifications
		}
		product, err := svc.CreateProduct(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func UpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := payload.categoryID()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.UpdateProduct(r.Context(), identity, id, catalog.UpdateProductInput{
			Code:           payload.Code,
			Name:           payload.Name,
			Description:    payload.Description,
			CategoryID:     categoryID,
			BasePrice:      payload.BasePrice,
			IsActive:       payload.IsActive,
			Specifications: payload.Specifications,
			Reason:         payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeleteProduct deactivates the product and returns it.
func DeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "catalog")
			return
		}
		identity := callerOrReject(w, r, logg)
		if identity == nil {
			return
		}
		id, err := validators.ParseURLUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.DeleteProduct(r.Context(), identity, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
