package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensportal/lensportal-backend/api/middleware"
	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/catalog"
	"github.com/lensportal/lensportal-backend/internal/pricehistory"
	"github.com/lensportal/lensportal-backend/internal/pricing"
	"github.com/lensportal/lensportal-backend/internal/registrations"
	"github.com/lensportal/lensportal-backend/internal/users"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/pagination"
)

var (
	adminIdentity  = &authz.Identity{UserID: "admin-1", Email: "admin@example.com", Role: enums.RoleAdmin}
	clientIdentity = &authz.Identity{UserID: "client-1", Email: "client@example.com", Role: enums.RoleClient}
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func call(h http.Handler, method, target string, identity *authz.Identity, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

type stubPricing struct {
	pricing.Service
	setInput      pricing.SetInput
	adjustClient  string
	adjustPercent float64
	adjustCalls   int
	err           error
}

func (s *stubPricing) Set(_ context.Context, _ *authz.Identity, input pricing.SetInput) (*pricing.ClientPriceDTO, error) {
	s.setInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &pricing.ClientPriceDTO{ProductID: input.ProductID, ClientID: input.ClientID}, nil
}

func (s *stubPricing) ApplyGlobalAdjustment(_ context.Context, _ *authz.Identity, clientID string, percentage float64) (*pricing.BulkAdjustResult, error) {
	s.adjustCalls++
	s.adjustClient, s.adjustPercent = clientID, percentage
	return &pricing.BulkAdjustResult{UpdatedCount: 3, Skipped: []pricing.SkippedRow{}}, nil
}

func TestBulkAdjustRejectsNonNumericPercentage(t *testing.T) {
	svc := &stubPricing{}
	h := BulkAdjustClientPrices(svc, testLogger())

	for _, body := range []string{`{"percentage":"ten"}`, `{"percentage":true}`, `{}`} {
		rec := call(h, http.MethodPost, "/api/client-prices/bulk-adjust", clientIdentity, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, svc.adjustCalls)
}

func TestBulkAdjustPassesPercentage(t *testing.T) {
	svc := &stubPricing{}
	h := BulkAdjustClientPrices(svc, testLogger())

	rec := call(h, http.MethodPost, "/api/client-prices/bulk-adjust", adminIdentity, `{"client_id":"client-9","percentage":-2.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-9", svc.adjustClient)
	assert.Equal(t, -2.5, svc.adjustPercent)

	var result pricing.BulkAdjustResult
	decodeData(t, rec, &result)
	assert.Equal(t, 3, result.UpdatedCount)
}

func TestSetClientPriceDecodesDecimalsAndVersion(t *testing.T) {
	svc := &stubPricing{}
	h := SetClientPrice(svc, testLogger())
	productID := uuid.New()

	rec := call(h, http.MethodPost, "/api/client-prices", clientIdentity,
		`{"product_id":"`+productID.String()+`","custom_price":"80.50","reason":"contract","version":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productID, svc.setInput.ProductID)
	require.NotNil(t, svc.setInput.CustomPrice)
	assert.True(t, svc.setInput.CustomPrice.Equal(decimal.RequireFromString("80.5")))
	assert.Nil(t, svc.setInput.DiscountPercentage)
	require.NotNil(t, svc.setInput.ExpectedVersion)
	assert.Equal(t, 2, *svc.setInput.ExpectedVersion)
}

func TestSetClientPriceSurfacesFloorViolation(t *testing.T) {
	svc := &stubPricing{err: pkgerrors.New(pkgerrors.CodeValidation, "Price cannot be below base price of $100.00")}
	h := SetClientPrice(svc, testLogger())

	rec := call(h, http.MethodPost, "/api/client-prices", clientIdentity, `{"product_id":"`+uuid.NewString()+`","custom_price":"50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Price cannot be below base price of $100.00")
}

func TestHandlersRequireIdentity(t *testing.T) {
	rec := call(SetClientPrice(&stubPricing{}, testLogger()), http.MethodPost, "/api/client-prices", nil, `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubCatalog struct {
	catalog.Service
	listInput   catalog.ListProductsInput
	createInput catalog.CreateProductInput
	deleted     uuid.UUID
}

func (s *stubCatalog) ListProducts(_ context.Context, _ *authz.Identity, input catalog.ListProductsInput) (*catalog.ProductPage, error) {
	s.listInput = input
	return &catalog.ProductPage{Items: []catalog.ProductDTO{}}, nil
}

func (s *stubCatalog) CreateProduct(_ context.Context, _ *authz.Identity, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	s.createInput = input
	return &catalog.ProductDTO{ID: uuid.New(), Code: input.Code}, nil
}

func (s *stubCatalog) DeleteProduct(_ context.Context, _ *authz.Identity, id uuid.UUID) (*catalog.ProductDTO, error) {
	s.deleted = id
	return &catalog.ProductDTO{ID: id, IsActive: false}, nil
}

func TestListProductsParsesFilters(t *testing.T) {
	svc := &stubCatalog{}
	h := ListProducts(svc, testLogger())
	categoryID := uuid.New()

	rec := call(h, http.MethodGet, "/api/products?family=laboratory&active=true&limit=10&search=%20progressive%20&category_id="+categoryID.String(), clientIdentity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listInput.Family)
	assert.Equal(t, enums.CategoryFamilyLaboratory, *svc.listInput.Family)
	require.NotNil(t, svc.listInput.Active)
	assert.True(t, *svc.listInput.Active)
	require.NotNil(t, svc.listInput.CategoryID)
	assert.Equal(t, categoryID, *svc.listInput.CategoryID)
	assert.Equal(t, 10, svc.listInput.Pagination.Limit)
	assert.Equal(t, "progressive", svc.listInput.Search)

	rec = call(h, http.MethodGet, "/api/products?family=sunglasses", clientIdentity, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProductRequiresCoreFields(t *testing.T) {
	svc := &stubCatalog{}
	h := CreateProduct(svc, testLogger())

	rec := call(h, http.MethodPost, "/api/products", adminIdentity, `{"code":"SV-150","name":"Single Vision"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	categoryID := uuid.New()
	rec = call(h, http.MethodPost, "/api/products", adminIdentity,
		`{"code":"SV-150","name":"Single Vision","category_id":"`+categoryID.String()+`","base_price_usd":"42.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, categoryID, svc.createInput.CategoryID)
	assert.True(t, svc.createInput.BasePrice.Equal(decimal.NewFromInt(42)))
}

func TestDeleteProductReturnsResource(t *testing.T) {
	svc := &stubCatalog{}
	r := chi.NewRouter()
	r.Delete("/api/products/{productId}", DeleteProduct(svc, testLogger()))
	id := uuid.New()

	rec := call(r, http.MethodDelete, "/api/products/"+id.String(), adminIdentity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, svc.deleted)

	var product catalog.ProductDTO
	decodeData(t, rec, &product)
	assert.Equal(t, id, product.ID)

	rec = call(r, http.MethodDelete, "/api/products/not-a-uuid", adminIdentity, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubHistory struct {
	pricehistory.Service
	input pricehistory.ListInput
}

func (s *stubHistory) List(_ context.Context, _ *authz.Identity, input pricehistory.ListInput) (*pagination.Page[pricehistory.EntryDTO], error) {
	s.input = input
	return &pagination.Page[pricehistory.EntryDTO]{Items: []pricehistory.EntryDTO{}, NextCursor: "next"}, nil
}

func TestListPriceHistoryParsesQuery(t *testing.T) {
	svc := &stubHistory{}
	h := ListPriceHistory(svc, testLogger())

	rec := call(h, http.MethodGet, "/api/price-history?client_id=client-1&change_type=bulk_update&cursor=abc", adminIdentity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-1", svc.input.ClientID)
	require.NotNil(t, svc.input.ChangeType)
	assert.Equal(t, enums.PriceChangeBulkUpdate, *svc.input.ChangeType)
	assert.Equal(t, "abc", svc.input.Pagination.Cursor)
	assert.Equal(t, pagination.DefaultLimit, svc.input.Pagination.Limit)
	assert.Contains(t, rec.Body.String(), `"next_cursor":"next"`)
}

type stubRegistrations struct {
	registrations.Service
	result *registrations.ApproveResult
}

func (s *stubRegistrations) Approve(_ context.Context, _ *authz.Identity, input registrations.ApproveInput) (*registrations.ApproveResult, error) {
	s.result.Email = input.Email
	return s.result, nil
}

func TestApproveRegistrationResponse(t *testing.T) {
	requestID := uuid.NewString()
	body := `{"requestId":"` + requestID + `","email":"optic@example.com","company_name":"Optic","phone":"555"}`

	svc := &stubRegistrations{result: &registrations.ApproveResult{Profile: &users.ProfileDTO{ID: "uid-1"}}}
	rec := call(AdminApproveRegistration(svc, testLogger()), http.MethodPost, "/api/admin/approve-registration", adminIdentity, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp approveRegistrationResponse
	decodeData(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "uid-1", resp.UserID)
	assert.Contains(t, resp.Message, "optic@example.com")
	assert.Empty(t, resp.Warning)

	svc.result = &registrations.ApproveResult{Warning: "password setup email could not be sent"}
	rec = call(AdminApproveRegistration(svc, testLogger()), http.MethodPost, "/api/admin/approve-registration", adminIdentity, body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = approveRegistrationResponse{}
	decodeData(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Message)
	assert.Equal(t, "password setup email could not be sent", resp.Warning)
}

type stubUsers struct {
	users.Service
	suspended string
}

func (s *stubUsers) Suspend(_ context.Context, _ *authz.Identity, userID string) (*users.ProfileDTO, error) {
	s.suspended = userID
	return &users.ProfileDTO{ID: userID}, nil
}

func TestSuspendUsesPathParam(t *testing.T) {
	svc := &stubUsers{}
	r := chi.NewRouter()
	r.Post("/api/admin/users/{userId}/suspend", AdminSuspendUser(svc, testLogger()))

	rec := call(r, http.MethodPost, "/api/admin/users/uid-42/suspend", adminIdentity, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uid-42", svc.suspended)
}
