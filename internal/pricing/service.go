package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
	"github.com/lensportal/lensportal-backend/pkg/outbox/payloads"
)

// Service manages per-client price overrides.
type Service interface {
	List(ctx context.Context, identity *authz.Identity, input ListInput) ([]ClientPriceDTO, error)
	Set(ctx context.Context, identity *authz.Identity, input SetInput) (*ClientPriceDTO, error)
	Delete(ctx context.Context, identity *authz.Identity, id uuid.UUID) error
	Summary(ctx context.Context, identity *authz.Identity, clientID string) (*Summary, error)
	ApplyGlobalAdjustment(ctx context.Context, identity *authz.Identity, clientID string, percentage float64) (*BulkAdjustResult, error)
}

type ListInput struct {
	ClientID  string
	ProductID *uuid.UUID
}

// SetInput creates or replaces one override. Exactly one of CustomPrice and
// DiscountPercentage may be set; with neither, new rows take the client's
// discount tier. ExpectedVersion, when set, must match the stored row.
type SetInput struct {
	ClientID           string
	ProductID          uuid.UUID
	CustomPrice        *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	Reason             *string
	ExpectedVersion    *int
}

type ClientPriceDTO struct {
	ID                 uuid.UUID       `json:"id"`
	ClientID           string          `json:"client_id"`
	ProductID          uuid.UUID       `json:"product_id"`
	ProductCode        string          `json:"product_code,omitempty"`
	ProductName        string          `json:"product_name,omitempty"`
	BasePrice          decimal.Decimal `json:"base_price"`
	CustomPrice        decimal.Decimal `json:"custom_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	FinalPrice         decimal.Decimal `json:"final_price"`
	Savings            decimal.Decimal `json:"savings"`
	Version            int             `json:"version"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type profileReader interface {
	FindByID(ctx context.Context, id string) (*models.UserProfile, error)
}

type mutationRecorder interface {
	IncPriceMutation(changeType string)
	AddBulkAdjustRows(updated, skipped int)
}

type service struct {
	repo     *Repository
	dbClient db.TxRunner
	profiles profileReader
	history  pricehistory.Recorder
	events   outbox.Emitter
	metrics  mutationRecorder
	logg     *logger.Logger
}

// NewService wires the client price service. metrics and logg may be nil.
func NewService(repo *Repository, dbClient db.TxRunner, profiles profileReader, history pricehistory.Recorder, events outbox.Emitter, metrics mutationRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "client price repository required")
	}
	if dbClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profile reader required")
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
		profiles: profiles,
		history:  history,
		events:   events,
		metrics:  metrics,
		logg:     logg,
	}, nil
}

func (s *service) List(ctx context.Context, identity *authz.Identity, input ListInput) ([]ClientPriceDTO, error) {
	clientID, err := authz.ScopeClientID(identity, input.ClientID, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, ListFilter{UserID: clientID, ProductID: input.ProductID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list client prices")
	}
	out := make([]ClientPriceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row, row.Product))
	}
	return out, nil
}

func (s *service) Set(ctx context.Context, identity *authz.Identity, input SetInput) (*ClientPriceDTO, error) {
	clientID, err := authz.ScopeClientID(identity, input.ClientID, true)
	if err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.CustomPrice != nil && input.DiscountPercentage != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "set either custom_price or discount_percentage, not both")
	}
	// Discounts resolve below base, so only admins may grant them.
	if !identity.IsAdmin() && input.CustomPrice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "clients can only set a custom price at or above the base price")
	}

	profile, err := s.loadClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	changeType := enums.PriceChangeClientCustom
	if identity.IsAdmin() {
		changeType = enums.PriceChangeAdminUpdate
	}

	var (
		saved   models.ClientPrice
		product *models.Product
	)
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		found, err := txRepo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if !found.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not active")
		}
		product = found

		existing, err := txRepo.FindForUpdate(ctx, clientID, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load client price")
		}

		terms, err := resolveSetTerms(input, product.BasePrice, existing, profile.DiscountTier)
		if err != nil {
			return err
		}

		oldPrice := product.BasePrice
		if existing != nil {
			if input.ExpectedVersion != nil && *input.ExpectedVersion != existing.Version {
				return pkgerrors.New(pkgerrors.CodeConflict, "client price was modified by another request")
			}
			oldPrice = Resolve(product.BasePrice, termsOf(*existing)).FinalPrice
			ok, err := txRepo.UpdateTerms(ctx, existing.ID, existing.Version, terms.CustomPrice, terms.DiscountPercentage)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update client price")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "client price was modified by another request")
			}
			saved = *existing
			saved.CustomPrice = terms.CustomPrice
			saved.DiscountPercentage = terms.DiscountPercentage
			saved.Version = existing.Version + 1
			saved.UpdatedAt = time.Now().UTC()
		} else {
			if input.ExpectedVersion != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "client price no longer exists")
			}
			saved = models.ClientPrice{
				UserID:             clientID,
				ProductID:          product.ID,
				CustomPrice:        terms.CustomPrice,
				DiscountPercentage: terms.DiscountPercentage,
				Version:            1,
			}
			if err := txRepo.Create(ctx, &saved); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "client price was created by another request")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert client price")
			}
		}

		newPrice := Resolve(product.BasePrice, terms).FinalPrice
		return s.recordChange(ctx, tx, identity, changeType, saved, oldPrice, newPrice, input.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.incPriceMutation(changeType)
	dto := toDTO(saved, product)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, identity *authz.Identity, id uuid.UUID) error {
	if err := authz.RequireAdmin(identity); err != nil {
		return err
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "client price not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load client price")
		}
		if row.Product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := txRepo.Delete(ctx, row.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete client price")
		}
		oldPrice := Resolve(row.Product.BasePrice, termsOf(*row)).FinalPrice
		return s.recordChange(ctx, tx, identity, enums.PriceChangeAdminUpdate, *row, oldPrice, row.Product.BasePrice, nil)
	})
	if err != nil {
		return err
	}
	s.incPriceMutation(enums.PriceChangeAdminUpdate)
	return nil
}

// Summary aggregates a client's overrides on active products.
func (s *service) Summary(ctx context.Context, identity *authz.Identity, clientID string) (*Summary, error) {
	clientID, err := authz.ScopeClientID(identity, clientID, true)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, ListFilter{UserID: clientID, ActiveOnly: true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list client prices")
	}
	items := make([]PricedItem, 0, len(rows))
	for _, row := range rows {
		if row.Product == nil {
			continue
		}
		items = append(items, PricedItem{BasePrice: row.Product.BasePrice, Terms: termsOf(row)})
	}
	summary := Summarize(items)
	return &summary, nil
}

// ApplyGlobalAdjustment moves every override a client has by percentage points
// of the base price. Positive percentages lower prices and negative ones raise
// them. Rows that would cross a floor are skipped and reported. All changes and
// their history rows commit together or not at all. Admin only.
func (s *service) ApplyGlobalAdjustment(ctx context.Context, identity *authz.Identity, clientID string, percentage float64) (*BulkAdjustResult, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	clientID, err := authz.ScopeClientID(identity, clientID, true)
	if err != nil {
		return nil, err
	}
	p, err := ParsePercentage(percentage)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadClient(ctx, clientID); err != nil {
		return nil, err
	}

	result := &BulkAdjustResult{Skipped: []SkippedRow{}}
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.ListForUpdate(ctx, clientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load client prices")
		}
		productIDs := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			productIDs = append(productIDs, row.ProductID)
		}
		products, err := txRepo.ProductsByID(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load products")
		}

		reason := "bulk adjustment " + p.StringFixed(2) + "%"
		for _, row := range rows {
			product, ok := products[row.ProductID]
			if !ok {
				continue
			}
			current := termsOf(row)
			next, skip, ok := Adjust(product.BasePrice, current, p)
			if !ok {
				result.Skipped = append(result.Skipped, SkippedRow{ProductID: row.ProductID, Reason: skip})
				continue
			}
			updated, err := txRepo.UpdateTerms(ctx, row.ID, row.Version, next.CustomPrice, next.DiscountPercentage)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update client price")
			}
			if !updated {
				return pkgerrors.New(pkgerrors.CodeConflict, "client prices were modified by another request")
			}
			if err := s.history.Record(ctx, tx, pricehistory.Entry{
				ProductID:  row.ProductID,
				UserID:     &row.UserID,
				OldPrice:   Resolve(product.BasePrice, current).FinalPrice,
				NewPrice:   Resolve(product.BasePrice, next).FinalPrice,
				ChangeType: enums.PriceChangeBulkUpdate,
				ActorID:    identity.UserID,
				Reason:     &reason,
			}); err != nil {
				return err
			}
			result.UpdatedCount++
		}

		skippedIDs := make([]uuid.UUID, 0, len(result.Skipped))
		for _, skipped := range result.Skipped {
			skippedIDs = append(skippedIDs, skipped.ProductID)
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClientPricesAdjusted,
			AggregateType: enums.AggregateUserProfile,
			AggregateID:   clientID,
			Actor:         actorRef(identity),
			Data: payloads.ClientPricesAdjustedEvent{
				UserID:          clientID,
				Percentage:      p,
				UpdatedCount:    result.UpdatedCount,
				SkippedProducts: skippedIDs,
				AdjustedBy:      identity.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AddBulkAdjustRows(result.UpdatedCount, len(result.Skipped))
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"client_id":     clientID,
			"percentage":    p.String(),
			"updated_count": result.UpdatedCount,
			"skipped_count": len(result.Skipped),
		})
		s.logg.Info(logCtx, "client prices adjusted")
	}
	return result, nil
}

func (s *service) incPriceMutation(changeType enums.PriceChangeType) {
	if s.metrics != nil {
		s.metrics.IncPriceMutation(string(changeType))
	}
}

func (s *service) loadClient(ctx context.Context, clientID string) (*models.UserProfile, error) {
	profile, err := s.profiles.FindByID(ctx, clientID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load client profile")
	}
	if profile.Role != enums.RoleClient {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices can only be set for client accounts")
	}
	return profile, nil
}

func (s *service) recordChange(ctx context.Context, tx *gorm.DB, identity *authz.Identity, changeType enums.PriceChangeType, row models.ClientPrice, oldPrice, newPrice decimal.Decimal, reason *string) error {
	if err := s.history.Record(ctx, tx, pricehistory.Entry{
		ProductID:  row.ProductID,
		UserID:     &row.UserID,
		OldPrice:   oldPrice,
		NewPrice:   newPrice,
		ChangeType: changeType,
		ActorID:    identity.UserID,
		Reason:     reason,
	}); err != nil {
		return err
	}
	userID := row.UserID
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPriceChanged,
		AggregateType: enums.AggregateClientPrice,
		AggregateID:   row.ID.String(),
		Actor:         actorRef(identity),
		Data: payloads.PriceChangedEvent{
			ProductID:  row.ProductID,
			UserID:     &userID,
			ChangeType: changeType,
			OldPrice:   oldPrice,
			NewPrice:   newPrice,
			ChangedBy:  identity.UserID,
		},
	})
}

// resolveSetTerms validates the requested override against the base price.
func resolveSetTerms(input SetInput, basePrice decimal.Decimal, existing *models.ClientPrice, tier decimal.Decimal) (ClientPriceTerms, error) {
	switch {
	case input.CustomPrice != nil:
		custom := input.CustomPrice.Round(2)
		if !custom.IsPositive() {
			return ClientPriceTerms{}, pkgerrors.New(pkgerrors.CodeValidation, "custom_price must be greater than 0")
		}
		if custom.LessThan(basePrice) {
			return ClientPriceTerms{}, BelowBasePriceError(basePrice)
		}
		return ClientPriceTerms{CustomPrice: custom, DiscountPercentage: decimal.Zero}, nil
	case input.DiscountPercentage != nil:
		return discountTerms(input.DiscountPercentage.Round(2))
	case existing == nil:
		return discountTerms(tier.Round(2))
	default:
		return ClientPriceTerms{}, pkgerrors.New(pkgerrors.CodeValidation, "custom_price or discount_percentage is required")
	}
}

func discountTerms(discount decimal.Decimal) (ClientPriceTerms, error) {
	if discount.LessThan(minDiscount) || discount.GreaterThanOrEqual(maxDiscount) {
		return ClientPriceTerms{}, pkgerrors.New(pkgerrors.CodeValidation, "discount_percentage must be at least -100 and below 100")
	}
	return ClientPriceTerms{CustomPrice: decimal.Zero, DiscountPercentage: discount}, nil
}

// BelowBasePriceError is returned when a custom price undercuts the product's base price.
func BelowBasePriceError(basePrice decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Price cannot be below base price of $"+basePrice.StringFixed(2))
}

func termsOf(row models.ClientPrice) ClientPriceTerms {
	return ClientPriceTerms{CustomPrice: row.CustomPrice, DiscountPercentage: row.DiscountPercentage}
}

func toDTO(row models.ClientPrice, product *models.Product) ClientPriceDTO {
	dto := ClientPriceDTO{
		ID:                 row.ID,
		ClientID:           row.UserID,
		ProductID:          row.ProductID,
		CustomPrice:        row.CustomPrice,
		DiscountPercentage: row.DiscountPercentage,
		Version:            row.Version,
		UpdatedAt:          row.UpdatedAt,
	}
	if product != nil {
		dto.ProductCode = product.Code
		dto.ProductName = product.Name
		dto.BasePrice = product.BasePrice
		res := Resolve(product.BasePrice, termsOf(row))
		dto.FinalPrice = res.FinalPrice
		dto.Savings = res.Savings
	}
	return dto
}

func actorRef(identity *authz.Identity) *outbox.ActorRef {
	if identity == nil {
		return nil
	}
	return outbox.NewActor(identity.UserID, string(identity.Role))
}
