package pricing

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
)

type stubProfiles struct {
	profiles map[string]*models.UserProfile
}

func (s *stubProfiles) FindByID(_ context.Context, id string) (*models.UserProfile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type recordingMetrics struct {
	mutations map[string]int
	updated   int
	skipped   int
}

func (m *recordingMetrics) IncPriceMutation(changeType string) {
	if m.mutations == nil {
		m.mutations = map[string]int{}
	}
	m.mutations[changeType]++
}

func (m *recordingMetrics) AddBulkAdjustRows(updated, skipped int) {
	m.updated += updated
	m.skipped += skipped
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	metrics  *recordingMetrics
	profiles *stubProfiles
	category *models.ProductCategory
}

var (
	adminIdentity  = &authz.Identity{UserID: "admin-1", Email: "ops@lensportal.test", Role: enums.RoleAdmin}
	clientIdentity = &authz.Identity{UserID: "client-1", Email: "buyer@optica.test", Role: enums.RoleClient}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.ProductCategory{},
		&models.Product{},
		&models.ClientPrice{},
		&models.PriceHistory{},
		&models.OutboxEvent{},
	))

	historyRepo := pricehistory.NewRepository(conn)
	recorder, err := pricehistory.NewRecorder(historyRepo)
	require.NoError(t, err)

	profiles := &stubProfiles{profiles: map[string]*models.UserProfile{
		"client-1": {ID: "client-1", Email: "buyer@optica.test", CompanyName: "Optica Norte", Role: enums.RoleClient, Status: enums.AccountStatusApproved, DiscountTier: decimal.RequireFromString("7.5")},
		"client-2": {ID: "client-2", Email: "lab@vision.test", CompanyName: "Vision Lab", Role: enums.RoleClient, Status: enums.AccountStatusApproved},
		"admin-1":  {ID: "admin-1", Email: "ops@lensportal.test", CompanyName: "Lens Portal", Role: enums.RoleAdmin, Status: enums.AccountStatusApproved},
	}}
	metrics := &recordingMetrics{}

	svc, err := NewService(
		NewRepository(conn),
		db.FromGorm(conn),
		profiles,
		recorder,
		outbox.NewService(outbox.NewRepository(conn), nil),
		metrics,
		nil,
	)
	require.NoError(t, err)

	category := &models.ProductCategory{Name: "Stock lenses", Slug: "stock-" + uuid.NewString(), Family: enums.CategoryFamilyStock}
	require.NoError(t, conn.Create(category).Error)

	return &fixture{conn: conn, svc: svc, metrics: metrics, profiles: profiles, category: category}
}

func (f *fixture) product(t *testing.T, base string) *models.Product {
	t.Helper()
	product := &models.Product{
		Code:       fmt.Sprintf("LNS-%s", uuid.NewString()[:8]),
		Name:       "CR-39 single vision",
		CategoryID: f.category.ID,
		BasePrice:  decimal.RequireFromString(base),
		IsActive:   true,
	}
	require.NoError(t, f.conn.Create(product).Error)
	return product
}

func (f *fixture) historyCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.PriceHistory{}).Count(&count).Error)
	return count
}

func (f *fixture) clientPriceCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.ClientPrice{}).Count(&count).Error)
	return count
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
