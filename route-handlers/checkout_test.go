package routehandlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/setclip/setclip/models"
	"github.com/setclip/setclip/payments"
	"github.com/setclip/setclip/webutil"
)

type stubClipStore struct {
	GetClipByIDFunc            func(ctx context.Context, clipID string) (*models.Clip, error)
	SearchClipsByPerformerFunc func(ctx context.Context, query string) ([]models.ClipSearchResult, error)
}

func (s *stubClipStore) GetClipByID(ctx context.Context, clipID string) (*models.Clip, error) {
	if s.GetClipByIDFunc != nil {
		return s.GetClipByIDFunc(ctx, clipID)
	}
	return nil, fmt.Errorf("clip not found: %w", sql.ErrNoRows)
}

func (s *stubClipStore) SearchClipsByPerformer(ctx context.Context, query string) ([]models.ClipSearchResult, error) {
	if s.SearchClipsByPerformerFunc != nil {
		return s.SearchClipsByPerformerFunc(ctx, query)
	}
	return nil, nil
}

type stubPurchaseCreator struct {
	CreatePurchaseFunc func(ctx context.Context, purchase *models.Purchase) error
	created            []*models.Purchase
}

func (s *stubPurchaseCreator) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	s.created = append(s.created, purchase)
	if s.CreatePurchaseFunc != nil {
		return s.CreatePurchaseFunc(ctx, purchase)
	}
	return nil
}

type stubCheckoutProvider struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req payments.CheckoutSessionRequest) (*payments.CheckoutSession, error)
	requests                  []payments.CheckoutSessionRequest
}

func (s *stubCheckoutProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (*payments.CheckoutSession, error) {
	s.requests = append(s.requests, req)
	if s.CreateCheckoutSessionFunc != nil {
		return s.CreateCheckoutSessionFunc(ctx, req)
	}
	return &payments.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.example.com/cs_test_123"}, nil
}

func testClip(id string, priceCents int64, available bool) *models.Clip {
	city := "Austin"
	return &models.Clip{
		ID:            id,
		ShowID:        uuid.NewString(),
		PerformerName: "Jo Example",
		SetNumber:     2,
		PriceCents:    priceCents,
		IsAvailable:   available,
		CreatedAt:     time.Now().UTC(),
		Show: &models.Show{
			ID:       uuid.NewString(),
			ShowDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			Venue:    &models.Venue{ID: uuid.NewString(), Name: "The Cellar", Slug: "the-cellar", City: &city},
		},
	}
}

func postCheckout(t *testing.T, handler *CheckoutHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	webutil.MakeHandler(handler.HandleCreateCheckout)(rec, req)
	return rec
}

func defaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		AppBaseURL:        "https://setclip.example.com",
		DefaultPriceCents: 500,
		MaxDownloads:      3,
	}
}

func TestCreateCheckoutMissingClipID(t *testing.T) {
	t.Parallel()

	provider := &stubCheckoutProvider{}
	purchases := &stubPurchaseCreator{}
	handler := NewCheckoutHandler(&stubClipStore{}, purchases, provider, defaultCheckoutConfig())

	rec := postCheckout(t, handler, `{"clipId":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("no checkout session should be created for a missing clip id")
	}
}

func TestCreateCheckoutClipNotFound(t *testing.T) {
	t.Parallel()

	handler := NewCheckoutHandler(&stubClipStore{}, &stubPurchaseCreator{}, &stubCheckoutProvider{}, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, uuid.NewString()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateCheckoutUnavailableClip(t *testing.T) {
	t.Parallel()

	clipID := uuid.NewString()
	clips := &stubClipStore{
		GetClipByIDFunc: func(ctx context.Context, id string) (*models.Clip, error) {
			return testClip(clipID, 700, false), nil
		},
	}
	provider := &stubCheckoutProvider{}
	purchases := &stubPurchaseCreator{}
	handler := NewCheckoutHandler(clips, purchases, provider, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, clipID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unavailable clip, got %d", rec.Code)
	}
	if len(provider.requests) != 0 {
		t.Fatalf("unavailable clip must never reach the payment provider")
	}
	if len(purchases.created) != 0 {
		t.Fatalf("unavailable clip must never create a purchase row")
	}
}

func TestCreateCheckoutSuccess(t *testing.T) {
	t.Parallel()

	clipID := uuid.NewString()
	clips := &stubClipStore{
		GetClipByIDFunc: func(ctx context.Context, id string) (*models.Clip, error) {
			if id != clipID {
				t.Errorf("unexpected clip id %s", id)
			}
			return testClip(clipID, 750, true), nil
		},
	}
	provider := &stubCheckoutProvider{}
	purchases := &stubPurchaseCreator{}
	handler := NewCheckoutHandler(clips, purchases, provider, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, clipID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.URL != "https://checkout.example.com/cs_test_123" {
		t.Errorf("unexpected checkout URL %q", resp.URL)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 session request, got %d", len(provider.requests))
	}
	sessionReq := provider.requests[0]
	if sessionReq.AmountCents != 750 {
		t.Errorf("expected clip's own price 750, got %d", sessionReq.AmountCents)
	}
	if sessionReq.ProductName != "Comedy Set - Jo Example" {
		t.Errorf("unexpected product name %q", sessionReq.ProductName)
	}
	if sessionReq.ProductDescription != "The Cellar - 2026-03-14" {
		t.Errorf("unexpected product description %q", sessionReq.ProductDescription)
	}
	if !strings.Contains(sessionReq.SuccessURL, "{CHECKOUT_SESSION_ID}") {
		t.Errorf("success URL must carry the session placeholder, got %q", sessionReq.SuccessURL)
	}
	if sessionReq.CancelURL != "https://setclip.example.com/clip/"+clipID {
		t.Errorf("unexpected cancel URL %q", sessionReq.CancelURL)
	}

	if len(purchases.created) != 1 {
		t.Fatalf("expected 1 pending purchase, got %d", len(purchases.created))
	}
	p := purchases.created[0]
	if p.Status != models.PurchaseStatusPending {
		t.Errorf("expected pending status, got %s", p.Status)
	}
	if p.StripeCheckoutSessionID != "cs_test_123" {
		t.Errorf("purchase must record the session id, got %q", p.StripeCheckoutSessionID)
	}
	if p.AmountCents != 750 {
		t.Errorf("expected amount 750, got %d", p.AmountCents)
	}
	if p.BuyerEmail != "" {
		t.Errorf("buyer email must be empty until the webhook fills it")
	}
	if p.DownloadToken != nil {
		t.Errorf("no download credential may exist before completion")
	}
	if p.MaxDownloads != 3 {
		t.Errorf("expected max downloads 3, got %d", p.MaxDownloads)
	}
}

func TestCreateCheckoutDefaultPrice(t *testing.T) {
	t.Parallel()

	clipID := uuid.NewString()
	clips := &stubClipStore{
		GetClipByIDFunc: func(ctx context.Context, id string) (*models.Clip, error) {
			return testClip(clipID, 0, true), nil
		},
	}
	provider := &stubCheckoutProvider{}
	purchases := &stubPurchaseCreator{}
	handler := NewCheckoutHandler(clips, purchases, provider, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, clipID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if provider.requests[0].AmountCents != 500 {
		t.Errorf("unset clip price must fall back to the configured default, got %d", provider.requests[0].AmountCents)
	}
	if purchases.created[0].AmountCents != 500 {
		t.Errorf("purchase must record the resolved default price, got %d", purchases.created[0].AmountCents)
	}
}

func TestCreateCheckoutProviderFailure(t *testing.T) {
	t.Parallel()

	clipID := uuid.NewString()
	clips := &stubClipStore{
		GetClipByIDFunc: func(ctx context.Context, id string) (*models.Clip, error) {
			return testClip(clipID, 500, true), nil
		},
	}
	provider := &stubCheckoutProvider{
		CreateCheckoutSessionFunc: func(ctx context.Context, req payments.CheckoutSessionRequest) (*payments.CheckoutSession, error) {
			return nil, errors.New("stripe unreachable")
		},
	}
	purchases := &stubPurchaseCreator{}
	handler := NewCheckoutHandler(clips, purchases, provider, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, clipID))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on gateway failure, got %d", rec.Code)
	}
	if len(purchases.created) != 0 {
		t.Fatalf("no purchase row without a checkout session")
	}
}

func TestCreateCheckoutInsertFailureStillReturnsURL(t *testing.T) {
	t.Parallel()

	clipID := uuid.NewString()
	clips := &stubClipStore{
		GetClipByIDFunc: func(ctx context.Context, id string) (*models.Clip, error) {
			return testClip(clipID, 500, true), nil
		},
	}
	purchases := &stubPurchaseCreator{
		CreatePurchaseFunc: func(ctx context.Context, purchase *models.Purchase) error {
			return errors.New("connection reset")
		},
	}
	handler := NewCheckoutHandler(clips, purchases, &stubCheckoutProvider{}, defaultCheckoutConfig())

	rec := postCheckout(t, handler, fmt.Sprintf(`{"clipId":%q}`, clipID))
	if rec.Code != http.StatusOK {
		t.Fatalf("a failed insert must not block the buyer; got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://checkout.example.com/cs_test_123") {
		t.Errorf("response must still carry the checkout URL: %s", rec.Body.String())
	}
}
