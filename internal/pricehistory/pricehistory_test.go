package pricehistory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.PriceHistory{}))
	return conn
}

func strPtr(v string) *string { return &v }

func record(t *testing.T, conn *gorm.DB, rec Recorder, entry Entry) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return rec.Record(context.Background(), tx, entry)
	}))
}

func TestRecorderWritesRow(t *testing.T) {
	conn := openTestDB(t)
	rec, err := NewRecorder(NewRepository(conn))
	require.NoError(t, err)

	productID := uuid.New()
	record(t, conn, rec, Entry{
		ProductID:  productID,
		UserID:     strPtr("client-1"),
		OldPrice:   decimal.RequireFromString("100"),
		NewPrice:   decimal.RequireFromString("120.005"),
		ChangeType: enums.PriceChangeAdminUpdate,
		ActorID:    "admin-1",
		Reason:     strPtr("  contract renewal "),
	})

	var rows []models.PriceHistory
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, productID, rows[0].ProductID)
	require.True(t, rows[0].NewPrice.Equal(decimal.RequireFromString("120.01")))
	require.Equal(t, "contract renewal", *rows[0].Reason)
	require.Equal(t, "admin-1", rows[0].ChangedBy)
}

func TestRecorderFailureAbortsTransaction(t *testing.T) {
	conn := openTestDB(t)
	rec, err := NewRecorder(NewRepository(conn))
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		if err := rec.Record(context.Background(), tx, Entry{
			ProductID:  uuid.New(),
			ChangeType: enums.PriceChangeBulkUpdate,
			ActorID:    "admin-1",
		}); err != nil {
			return err
		}
		return rec.Record(context.Background(), tx, Entry{
			ProductID:  uuid.New(),
			ChangeType: enums.PriceChangeType("rebate"),
			ActorID:    "admin-1",
		})
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, conn.Model(&models.PriceHistory{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRecorderRequiresTransactionAndActor(t *testing.T) {
	conn := openTestDB(t)
	rec, err := NewRecorder(NewRepository(conn))
	require.NoError(t, err)

	err = rec.Record(context.Background(), nil, Entry{ProductID: uuid.New(), ChangeType: enums.PriceChangeAdminUpdate, ActorID: "a"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInternal))

	err = rec.Record(context.Background(), conn, Entry{ProductID: uuid.New(), ChangeType: enums.PriceChangeAdminUpdate, ActorID: "  "})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestServiceListScopesClients(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	rec, err := NewRecorder(repo)
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)

	productID := uuid.New()
	record(t, conn, rec, Entry{ProductID: productID, OldPrice: decimal.NewFromInt(90), NewPrice: decimal.NewFromInt(100), ChangeType: enums.PriceChangeAdminUpdate, ActorID: "admin-1"})
	record(t, conn, rec, Entry{ProductID: productID, UserID: strPtr("client-1"), NewPrice: decimal.NewFromInt(110), ChangeType: enums.PriceChangeAdminUpdate, ActorID: "admin-1"})
	record(t, conn, rec, Entry{ProductID: productID, UserID: strPtr("client-2"), NewPrice: decimal.NewFromInt(120), ChangeType: enums.PriceChangeClientCustom, ActorID: "client-2"})

	client := &authz.Identity{UserID: "client-1", Role: enums.RoleClient}
	page, err := svc.List(context.Background(), client, ListInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "client-1", *page.Items[0].UserID)

	_, err = svc.List(context.Background(), client, ListInput{ClientID: "client-2"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	admin := &authz.Identity{UserID: "admin-1", Role: enums.RoleAdmin}
	page, err = svc.List(context.Background(), admin, ListInput{ProductID: &productID})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	custom := enums.PriceChangeClientCustom
	page, err = svc.List(context.Background(), admin, ListInput{ChangeType: &custom})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "client-2", page.Items[0].ChangedBy)
}

func TestServiceListPaginates(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	rec, err := NewRecorder(repo)
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		record(t, conn, rec, Entry{ProductID: uuid.New(), NewPrice: decimal.NewFromInt(int64(10 + i)), ChangeType: enums.PriceChangeAdminUpdate, ActorID: "admin-1"})
	}

	admin := &authz.Identity{UserID: "admin-1", Role: enums.RoleAdmin}
	page, err := svc.List(context.Background(), admin, ListInput{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	_, err = svc.List(context.Background(), admin, ListInput{Pagination: pagination.Params{Cursor: "%%%"}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
