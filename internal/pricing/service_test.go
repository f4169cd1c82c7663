package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

func TestSetRejectsCustomPriceBelowBase(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "100")

	_, err := f.svc.Set(context.Background(), adminIdentity, SetInput{
		ClientID:    "client-1",
		ProductID:   product.ID,
		CustomPrice: decPtr("99.99"),
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	require.Equal(t, "Price cannot be below base price of $100.00", pkgerrors.As(err).Message())
	require.Zero(t, f.clientPriceCount(t))
	require.Zero(t, f.historyCount(t))
}

func TestSetCustomPriceByClientRecordsClientCustom(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "100")

	dto, err := f.svc.Set(context.Background(), clientIdentity, SetInput{
		ProductID:   product.ID,
		CustomPrice: decPtr("130"),
	})
	require.NoError(t, err)
	require.Equal(t, "client-1", dto.ClientID)
	require.True(t, dto.FinalPrice.Equal(dec("130")))
	require.True(t, dto.Savings.Equal(dec("-30")))
	require.Equal(t, 1, dto.Version)

	var history []models.PriceHistory
	require.NoError(t, f.conn.Find(&history).Error)
	require.Len(t, history, 1)
	require.Equal(t, enums.PriceChangeClientCustom, history[0].ChangeType)
	require.True(t, history[0].OldPrice.Equal(dec("100")))
	require.True(t, history[0].NewPrice.Equal(dec("130")))
	require.Equal(t, 1, f.metrics.mutations[string(enums.PriceChangeClientCustom)])

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventPriceChanged, events[0].EventType)
}

func TestSetByAdminUpdatesExistingRow(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "80")

	first, err := f.svc.Set(context.Background(), adminIdentity, SetInput{
		ClientID:           "client-2",
		ProductID:          product.ID,
		DiscountPercentage: decPtr("10"),
	})
	require.NoError(t, err)
	require.True(t, first.FinalPrice.Equal(dec("72")))

	second, err := f.svc.Set(context.Background(), adminIdentity, SetInput{
		ClientID:        "client-2",
		ProductID:       product.ID,
		CustomPrice:     decPtr("95"),
		ExpectedVersion: &first.Version,
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Version)
	require.True(t, second.DiscountPercentage.IsZero())
	require.True(t, second.CustomPrice.Equal(dec("95")))

	var history []models.PriceHistory
	require.NoError(t, f.conn.Order("created_at ASC").Find(&history).Error)
	require.Len(t, history, 2)
	require.Equal(t, enums.PriceChangeAdminUpdate, history[1].ChangeType)
	require.True(t, history[1].OldPrice.Equal(dec("72")))
	require.True(t, history[1].NewPrice.Equal(dec("95")))
}

func TestSetStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "50")

	_, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-2", ProductID: product.ID, DiscountPercentage: decPtr("5")})
	require.NoError(t, err)

	stale := 7
	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-2", ProductID: product.ID, DiscountPercentage: decPtr("6"), ExpectedVersion: &stale})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	require.EqualValues(t, 1, f.historyCount(t))
}

func TestClientCannotPriceBelowBase(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "100")

	_, err := f.svc.Set(context.Background(), clientIdentity, SetInput{ProductID: product.ID, DiscountPercentage: decPtr("99")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Set(context.Background(), clientIdentity, SetInput{ProductID: product.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Set(context.Background(), clientIdentity, SetInput{ProductID: product.ID, CustomPrice: decPtr("99")})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	require.Zero(t, f.clientPriceCount(t))

	_, err = f.svc.Set(context.Background(), clientIdentity, SetInput{ProductID: product.ID, CustomPrice: decPtr("101")})
	require.NoError(t, err)
	_, err = f.svc.ApplyGlobalAdjustment(context.Background(), clientIdentity, "", 0.5)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	rows, err := f.svc.List(context.Background(), clientIdentity, ListInput{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].FinalPrice.Equal(dec("101")))
	require.Equal(t, 1, rows[0].Version)
}

func TestSetDefaultsToDiscountTier(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "200")

	dto, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: product.ID})
	require.NoError(t, err)
	require.True(t, dto.DiscountPercentage.Equal(dec("7.5")))
	require.True(t, dto.FinalPrice.Equal(dec("185")))

	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: product.ID})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestSetValidation(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "40")

	cases := []struct {
		name     string
		identity *authz.Identity
		input    SetInput
		want     pkgerrors.Code
	}{
		{name: "both modes", identity: adminIdentity, input: SetInput{ClientID: "client-1", ProductID: product.ID, CustomPrice: decPtr("50"), DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeValidation},
		{name: "discount at 100", identity: adminIdentity, input: SetInput{ClientID: "client-1", ProductID: product.ID, DiscountPercentage: decPtr("100")}, want: pkgerrors.CodeValidation},
		{name: "zero custom", identity: adminIdentity, input: SetInput{ClientID: "client-1", ProductID: product.ID, CustomPrice: decPtr("0")}, want: pkgerrors.CodeValidation},
		{name: "admin without client", identity: adminIdentity, input: SetInput{ProductID: product.ID, DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeValidation},
		{name: "other client", identity: clientIdentity, input: SetInput{ClientID: "client-2", ProductID: product.ID, DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeForbidden},
		{name: "unknown client", identity: adminIdentity, input: SetInput{ClientID: "ghost", ProductID: product.ID, DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeNotFound},
		{name: "admin target", identity: adminIdentity, input: SetInput{ClientID: "admin-1", ProductID: product.ID, DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeValidation},
		{name: "unknown product", identity: adminIdentity, input: SetInput{ClientID: "client-1", ProductID: uuid.New(), DiscountPercentage: decPtr("5")}, want: pkgerrors.CodeNotFound},
		{name: "anonymous", identity: nil, input: SetInput{ClientID: "client-1", ProductID: product.ID}, want: pkgerrors.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Set(context.Background(), tc.identity, tc.input)
			require.True(t, pkgerrors.Is(err, tc.want), "got %v", err)
		})
	}
	require.Zero(t, f.clientPriceCount(t))
	require.Zero(t, f.historyCount(t))
}

func TestDeleteRevertsToBase(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "60")

	dto, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: product.ID, CustomPrice: decPtr("75")})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), clientIdentity, dto.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	require.NoError(t, f.svc.Delete(context.Background(), adminIdentity, dto.ID))
	require.Zero(t, f.clientPriceCount(t))

	var last models.PriceHistory
	require.NoError(t, f.conn.Order("created_at DESC").First(&last).Error)
	require.True(t, last.OldPrice.Equal(dec("75")))
	require.True(t, last.NewPrice.Equal(dec("60")))

	err = f.svc.Delete(context.Background(), adminIdentity, dto.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestListResolvesPrices(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "100")
	b := f.product(t, "20")

	_, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: a.ID, DiscountPercentage: decPtr("25")})
	require.NoError(t, err)
	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-2", ProductID: b.ID, CustomPrice: decPtr("22")})
	require.NoError(t, err)

	rows, err := f.svc.List(context.Background(), clientIdentity, ListInput{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].FinalPrice.Equal(dec("75")))
	require.Equal(t, a.Code, rows[0].ProductCode)

	rows, err = f.svc.List(context.Background(), adminIdentity, ListInput{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = f.svc.List(context.Background(), adminIdentity, ListInput{ProductID: &b.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "client-2", rows[0].ClientID)
}

func TestSummaryAggregatesActiveProducts(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "100")
	b := f.product(t, "100")
	retired := f.product(t, "100")

	for _, in := range []SetInput{
		{ClientID: "client-1", ProductID: a.ID, DiscountPercentage: decPtr("20")},
		{ClientID: "client-1", ProductID: b.ID, CustomPrice: decPtr("130")},
		{ClientID: "client-1", ProductID: retired.ID, DiscountPercentage: decPtr("50")},
	} {
		_, err := f.svc.Set(context.Background(), adminIdentity, in)
		require.NoError(t, err)
	}
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", retired.ID).Update("is_active", false).Error)

	summary, err := f.svc.Summary(context.Background(), clientIdentity, "")
	require.NoError(t, err)
	require.Equal(t, 2, summary.Count)
	require.True(t, summary.TotalFinal.Equal(dec("210")))
	require.True(t, summary.TotalSavings.Equal(dec("-10")))
	require.True(t, summary.AverageDiscount.Equal(dec("-5")))

	_, err = f.svc.Summary(context.Background(), adminIdentity, "")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestApplyGlobalAdjustmentRoundTrip(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "100")
	b := f.product(t, "37.99")

	_, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: a.ID, DiscountPercentage: decPtr("10")})
	require.NoError(t, err)
	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: b.ID, CustomPrice: decPtr("60")})
	require.NoError(t, err)

	before, err := f.svc.List(context.Background(), adminIdentity, ListInput{ClientID: "client-1"})
	require.NoError(t, err)

	res, err := f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-1", 12.5)
	require.NoError(t, err)
	require.Equal(t, 2, res.UpdatedCount)
	require.Empty(t, res.Skipped)

	res, err = f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-1", -12.5)
	require.NoError(t, err)
	require.Equal(t, 2, res.UpdatedCount)

	after, err := f.svc.List(context.Background(), adminIdentity, ListInput{ClientID: "client-1"})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	byID := map[uuid.UUID]ClientPriceDTO{}
	for _, row := range before {
		byID[row.ID] = row
	}
	for _, row := range after {
		orig := byID[row.ID]
		require.True(t, orig.CustomPrice.Equal(row.CustomPrice), "custom %s vs %s", orig.CustomPrice, row.CustomPrice)
		require.True(t, orig.DiscountPercentage.Equal(row.DiscountPercentage), "discount %s vs %s", orig.DiscountPercentage, row.DiscountPercentage)
		require.Equal(t, orig.Version+2, row.Version)
	}

	var bulk int64
	require.NoError(t, f.conn.Model(&models.PriceHistory{}).Where("change_type = ?", enums.PriceChangeBulkUpdate).Count(&bulk).Error)
	require.EqualValues(t, 4, bulk)
	require.Equal(t, 4, f.metrics.updated)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventClientPricesAdjusted).Count(&events).Error)
	require.EqualValues(t, 2, events)
}

func TestApplyGlobalAdjustmentSkipsFloorCrossings(t *testing.T) {
	f := newFixture(t)
	nearBase := f.product(t, "100")
	deepDiscount := f.product(t, "50")
	roomy := f.product(t, "10")

	_, err := f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: nearBase.ID, CustomPrice: decPtr("105")})
	require.NoError(t, err)
	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: deepDiscount.ID, DiscountPercentage: decPtr("95")})
	require.NoError(t, err)
	_, err = f.svc.Set(context.Background(), adminIdentity, SetInput{ClientID: "client-1", ProductID: roomy.ID, DiscountPercentage: decPtr("0.5")})
	require.NoError(t, err)
	historyBefore := f.historyCount(t)

	res, err := f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-1", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.UpdatedCount)
	require.Len(t, res.Skipped, 2)
	reasons := map[uuid.UUID]SkipReason{}
	for _, s := range res.Skipped {
		reasons[s.ProductID] = s.Reason
	}
	require.Equal(t, SkipBelowBasePrice, reasons[nearBase.ID])
	require.Equal(t, SkipDiscountTooHigh, reasons[deepDiscount.ID])
	require.Equal(t, historyBefore+1, f.historyCount(t))
	require.Equal(t, 2, f.metrics.skipped)

	var untouched models.ClientPrice
	require.NoError(t, f.conn.Where("product_id = ?", nearBase.ID).First(&untouched).Error)
	require.True(t, untouched.CustomPrice.Equal(dec("105")))
	require.Equal(t, 1, untouched.Version)
}

func TestApplyGlobalAdjustmentValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-1", 0)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-1", 150)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.ApplyGlobalAdjustment(context.Background(), clientIdentity, "client-2", 5)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	res, err := f.svc.ApplyGlobalAdjustment(context.Background(), adminIdentity, "client-2", 5)
	require.NoError(t, err)
	require.Zero(t, res.UpdatedCount)
	require.NotNil(t, res.Skipped)
}
