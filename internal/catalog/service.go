// Package catalog manages products and their categories.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/pkg/cache"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
	"github.com/lensportal/lensportal-backend/pkg/outbox/payloads"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
	"github.com/lensportal/lensportal-backend/pkg/types"
)

// Service exposes catalog reads to every signed-in account and writes to admins.
type Service interface {
	ListCategories(ctx context.Context, identity *authz.Identity) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, identity *authz.Identity, input CreateCategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, identity *authz.Identity, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, identity *authz.Identity, id uuid.UUID) error

	ListProducts(ctx context.Context, identity *authz.Identity, input ListProductsInput) (*ProductPage, error)
	GetProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, identity *authz.Identity, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID) (*ProductDTO, error)
}

type CreateCategoryInput struct {
	Name         string
	Slug         string
	Family       enums.CategoryFamily
	DisplayOrder int
}

type UpdateCategoryInput struct {
	Name         *string
	Slug         *string
	Family       *enums.CategoryFamily
	DisplayOrder *int
}

type ListProductsInput struct {
	CategoryID *uuid.UUID
	Family     *enums.CategoryFamily
	Active     *bool
	Search     string
	Pagination pagination.Params
}

type CreateProductInput struct {
	Code           string
	Name           string
	Description    *string
	CategoryID     uuid.UUID
	BasePrice      decimal.Decimal
	IsActive       *bool
	Specifications types.Specifications
}

// UpdateProductInput is a partial update; nil fields keep their value.
type UpdateProductInput struct {
	Code           *string
	Name           *string
	Description    *string
	CategoryID     *uuid.UUID
	BasePrice      *decimal.Decimal
	IsActive       *bool
	Specifications *types.Specifications
	Reason         *string
}

type priceMutationRecorder interface {
	IncPriceMutation(changeType string)
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	history  pricehistory.Recorder
	events   outbox.Emitter
	cache    *cache.Cache
	metrics  priceMutationRecorder
	logg     *logger.Logger
}

// NewService wires the catalog. cache, metrics and logg may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, history pricehistory.Recorder, events outbox.Emitter, queryCache *cache.Cache, metrics priceMutationRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if dbClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if history == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "price history recorder required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		history:  history,
		events:   events,
		cache:    queryCache,
		metrics:  metrics,
		logg:     logg,
	}, nil
}

func (s *service) ListCategories(ctx context.Context, identity *authz.Identity) ([]CategoryDTO, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	return cache.GetOrLoad(ctx, s.cache, cache.NamespaceCategories, "all", func(ctx context.Context) ([]CategoryDTO, error) {
		rows, err := s.repo.ListCategories(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list categories")
		}
		out := make([]CategoryDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, toCategoryDTO(row))
		}
		return out, nil
	})
}

func (s *service) CreateCategory(ctx context.Context, identity *authz.Identity, input CreateCategoryInput) (*CategoryDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Family.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid family %q", input.Family)
	}
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}

	category := &models.ProductCategory{
		Name:         name,
		Slug:         slug,
		Family:       input.Family,
		DisplayOrder: input.DisplayOrder,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "category slug %q already exists", slug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert category")
	}
	s.invalidate(ctx, cache.NamespaceCategories)

	dto := toCategoryDTO(*category)
	return &dto, nil
}

func (s *service) UpdateCategory(ctx context.Context, identity *authz.Identity, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}

	var updated models.ProductCategory
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		category, err := txRepo.FindCategory(ctx, id)
		if err != nil {
			return notFoundOr(err, "category not found", "db: load category")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
			}
			category.Name = name
		}
		if input.Slug != nil {
			slug := slugify(*input.Slug)
			if slug == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "slug must not be empty")
			}
			category.Slug = slug
		}
		if input.DisplayOrder != nil {
			category.DisplayOrder = *input.DisplayOrder
		}
		if input.Family != nil && *input.Family != category.Family {
			if !input.Family.IsValid() {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid family %q", *input.Family)
			}
			count, err := txRepo.CountProductsInCategory(ctx, category.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count category products")
			}
			if count > 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "family cannot change while products reference the category")
			}
			category.Family = *input.Family
		}

		if err := txRepo.SaveCategory(ctx, category); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "category slug %q already exists", category.Slug)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update category")
		}
		updated = *category
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.NamespaceCategories, cache.NamespaceCatalog)

	dto := toCategoryDTO(updated)
	return &dto, nil
}

// DeleteCategory refuses while any product, active or not, still points at the category.
func (s *service) DeleteCategory(ctx context.Context, identity *authz.Identity, id uuid.UUID) error {
	if err := authz.RequireAdmin(identity); err != nil {
		return err
	}
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindCategory(ctx, id); err != nil {
			return notFoundOr(err, "category not found", "db: load category")
		}
		count, err := txRepo.CountProductsInCategory(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count category products")
		}
		if count > 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "category is used by %d products", count)
		}
		if err := txRepo.DeleteCategory(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete category")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, cache.NamespaceCategories)
	return nil
}

// ListProducts pages through the catalog. Non-admins only ever see active products.
func (s *service) ListProducts(ctx context.Context, identity *authz.Identity, input ListProductsInput) (*ProductPage, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		active := true
		input.Active = &active
	}
	if input.Family != nil && !input.Family.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid family %q", *input.Family)
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	return cache.GetOrLoad(ctx, s.cache, cache.NamespaceCatalog, listCacheKey(input), func(ctx context.Context) (*ProductPage, error) {
		rows, err := s.repo.ListProducts(ctx, ProductFilter{
			CategoryID: input.CategoryID,
			Family:     input.Family,
			Active:     input.Active,
			Search:     input.Search,
		}, input.Pagination, cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
		}
		page := pagination.Build(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
			return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
		})
		items := make([]ProductDTO, 0, len(page.Items))
		for _, row := range page.Items {
			items = append(items, toProductDTO(row))
		}
		return &ProductPage{Items: items, NextCursor: page.NextCursor}, nil
	})
}

func (s *service) GetProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID) (*ProductDTO, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	dto, err := cache.GetOrLoad(ctx, s.cache, cache.NamespaceCatalog, "product:"+id.String(), func(ctx context.Context) (*ProductDTO, error) {
		product, err := s.repo.FindProduct(ctx, id)
		if err != nil {
			return nil, notFoundOr(err, "product not found", "db: load product")
		}
		dto := toProductDTO(*product)
		return &dto, nil
	})
	if err != nil {
		return nil, err
	}
	if !dto.IsActive && !identity.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return dto, nil
}

func (s *service) CreateProduct(ctx context.Context, identity *authz.Identity, input CreateProductInput) (*ProductDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if err := validateBasePrice(input.BasePrice); err != nil {
		return nil, err
	}

	var created models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		category, err := txRepo.FindCategory(ctx, input.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
		}
		if err := validateSpecifications(input.Specifications, category.Family); err != nil {
			return err
		}

		product := &models.Product{
			Code:           code,
			Name:           name,
			Description:    trimmedOrNil(input.Description),
			CategoryID:     category.ID,
			BasePrice:      input.BasePrice.Round(2),
			Currency:       enums.CurrencyUSD,
			IsActive:       true,
			Specifications: input.Specifications,
		}
		if err := txRepo.CreateProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "product code %q already exists", code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		if input.IsActive != nil && !*input.IsActive {
			product.IsActive = false
			if err := txRepo.SaveProduct(ctx, product); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: deactivate product")
			}
		}
		product.Category = category
		created = *product
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.NamespaceCatalog)

	dto := toProductDTO(created)
	return &dto, nil
}

// UpdateProduct applies a partial update. A base price change is written to
// price history in the same transaction. Raising the base lifts any custom
// client price left under it to the new base, with its own history row.
func (s *service) UpdateProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}

	var (
		updated      models.Product
		priceChanged bool
		lifted       int
	)
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindProduct(ctx, id)
		if err != nil {
			return notFoundOr(err, "product not found", "db: load product")
		}
		oldPrice := product.BasePrice

		if input.Code != nil {
			code := strings.ToUpper(strings.TrimSpace(*input.Code))
			if code == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "code must not be empty")
			}
			product.Code = code
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
			}
			product.Name = name
		}
		if input.Description != nil {
			product.Description = trimmedOrNil(input.Description)
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}
		if input.BasePrice != nil {
			if err := validateBasePrice(*input.BasePrice); err != nil {
				return err
			}
			product.BasePrice = input.BasePrice.Round(2)
		}
		if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
			category, err := txRepo.FindCategory(ctx, *input.CategoryID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
			}
			product.CategoryID = category.ID
			product.Category = category
		}
		if input.Specifications != nil {
			product.Specifications = *input.Specifications
		}
		if product.Category != nil {
			if err := validateSpecifications(product.Specifications, product.Category.Family); err != nil {
				return err
			}
		}

		if err := txRepo.SaveProduct(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "product code %q already exists", product.Code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}

		if !product.BasePrice.Equal(oldPrice) {
			priceChanged = true
			if err := s.history.Record(ctx, tx, pricehistory.Entry{
				ProductID:  product.ID,
				OldPrice:   oldPrice,
				NewPrice:   product.BasePrice,
				ChangeType: enums.PriceChangeAdminUpdate,
				ActorID:    identity.UserID,
				Reason:     input.Reason,
			}); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPriceChanged,
				AggregateType: enums.AggregateProduct,
				AggregateID:   product.ID.String(),
				Actor:         outbox.NewActor(identity.UserID, string(identity.Role)),
				Data: payloads.PriceChangedEvent{
					ProductID:  product.ID,
					ChangeType: enums.PriceChangeAdminUpdate,
					OldPrice:   oldPrice,
					NewPrice:   product.BasePrice,
					ChangedBy:  identity.UserID,
				},
			}); err != nil {
				return err
			}
			if product.BasePrice.GreaterThan(oldPrice) {
				n, err := s.liftClientPrices(ctx, txRepo, tx, identity, product)
				if err != nil {
					return err
				}
				lifted = n
			}
		}
		updated = *product
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.NamespaceCatalog)
	if priceChanged && s.metrics != nil {
		for i := 0; i <= lifted; i++ {
			s.metrics.IncPriceMutation(string(enums.PriceChangeAdminUpdate))
		}
	}

	dto := toProductDTO(updated)
	return &dto, nil
}

// liftClientPrices raises stored custom prices that a base price increase
// left under the floor. Each lifted row gets its own history entry and event.
func (s *service) liftClientPrices(ctx context.Context, txRepo *Repository, tx *gorm.DB, identity *authz.Identity, product *models.Product) (int, error) {
	rows, err := txRepo.ClientPricesBelow(ctx, product.ID, product.BasePrice)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load client prices below base")
	}
	reason := "raised to new base price"
	for _, row := range rows {
		ok, err := txRepo.LiftClientPrice(ctx, row, product.BasePrice)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lift client price")
		}
		if !ok {
			return 0, pkgerrors.New(pkgerrors.CodeConflict, "client price modified concurrently, retry the base price update")
		}
		userID := row.UserID
		if err := s.history.Record(ctx, tx, pricehistory.Entry{
			ProductID:  product.ID,
			UserID:     &userID,
			OldPrice:   row.CustomPrice,
			NewPrice:   product.BasePrice,
			ChangeType: enums.PriceChangeAdminUpdate,
			ActorID:    identity.UserID,
			Reason:     &reason,
		}); err != nil {
			return 0, err
		}
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPriceChanged,
			AggregateType: enums.AggregateClientPrice,
			AggregateID:   row.ID.String(),
			Actor:         outbox.NewActor(identity.UserID, string(identity.Role)),
			Data: payloads.PriceChangedEvent{
				ProductID:  product.ID,
				UserID:     &userID,
				ChangeType: enums.PriceChangeAdminUpdate,
				OldPrice:   row.CustomPrice,
				NewPrice:   product.BasePrice,
				ChangedBy:  identity.UserID,
			},
		}); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// DeleteProduct deactivates the product and returns it. Products are never removed.
func (s *service) DeleteProduct(ctx context.Context, identity *authz.Identity, id uuid.UUID) (*ProductDTO, error) {
	inactive := false
	return s.UpdateProduct(ctx, identity, id, UpdateProductInput{IsActive: &inactive})
}

func (s *service) invalidate(ctx context.Context, namespaces ...string) {
	if err := s.cache.Invalidate(ctx, namespaces...); err != nil && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "cache_namespaces", namespaces)
		s.logg.Error(logCtx, "cache invalidation failed", err)
	}
}

func validateBasePrice(price decimal.Decimal) error {
	if !price.Round(2).IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "base_price_usd must be greater than 0")
	}
	return nil
}

func validateSpecifications(spec types.Specifications, family enums.CategoryFamily) error {
	if err := spec.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if !spec.MatchesFamily(family) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "specifications of kind %q do not fit a %s category", spec.Kind, family)
	}
	return nil
}

func notFoundOr(err error, notFound, dependency string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dependency)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func listCacheKey(input ListProductsInput) string {
	parts := []string{"list"}
	if input.CategoryID != nil {
		parts = append(parts, "cat="+input.CategoryID.String())
	}
	if input.Family != nil {
		parts = append(parts, "fam="+string(*input.Family))
	}
	if input.Active != nil {
		parts = append(parts, fmt.Sprintf("active=%t", *input.Active))
	}
	if search := strings.ToLower(strings.TrimSpace(input.Search)); search != "" {
		parts = append(parts, "q="+search)
	}
	parts = append(parts,
		fmt.Sprintf("limit=%d", pagination.NormalizeLimit(input.Pagination.Limit)),
		"cursor="+input.Pagination.Cursor,
	)
	return strings.Join(parts, "|")
}
