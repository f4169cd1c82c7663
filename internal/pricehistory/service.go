package pricehistory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

type ListInput struct {
	ProductID  *uuid.UUID
	ClientID   string
	ChangeType *enums.PriceChangeType
	Pagination pagination.Params
}

type EntryDTO struct {
	ID         uuid.UUID             `json:"id"`
	ProductID  uuid.UUID             `json:"product_id"`
	UserID     *string               `json:"user_id,omitempty"`
	OldPrice   decimal.Decimal       `json:"old_price"`
	NewPrice   decimal.Decimal       `json:"new_price"`
	ChangeType enums.PriceChangeType `json:"change_type"`
	ChangedBy  string                `json:"changed_by"`
	Reason     *string               `json:"reason,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Service is the read side of price history.
type Service interface {
	List(ctx context.Context, identity *authz.Identity, input ListInput) (*pagination.Page[EntryDTO], error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "price history repository required")
	}
	return &service{repo: repo}, nil
}

// List returns history newest first. Clients only ever see their own rows;
// admins may list everything or narrow by client.
func (s *service) List(ctx context.Context, identity *authz.Identity, input ListInput) (*pagination.Page[EntryDTO], error) {
	clientID, err := authz.ScopeClientID(identity, input.ClientID, false)
	if err != nil {
		return nil, err
	}
	if input.ChangeType != nil && !input.ChangeType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid change_type %q", *input.ChangeType)
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := Filter{ProductID: input.ProductID, ChangeType: input.ChangeType}
	if clientID != "" {
		filter.UserID = &clientID
	}

	rows, err := s.repo.List(ctx, filter, input.Pagination, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list price history")
	}

	page := pagination.Build(rows, input.Pagination.Limit, func(row models.PriceHistory) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	items := make([]EntryDTO, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, toDTO(row))
	}
	return &pagination.Page[EntryDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

func toDTO(row models.PriceHistory) EntryDTO {
	return EntryDTO{
		ID:         row.ID,
		ProductID:  row.ProductID,
		UserID:     row.UserID,
		OldPrice:   row.OldPrice,
		NewPrice:   row.NewPrice,
		ChangeType: row.ChangeType,
		ChangedBy:  row.ChangedBy,
		Reason:     row.Reason,
		CreatedAt:  row.CreatedAt,
	}
}
