package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-alert-system/internal/middleware"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/mmeshcher/order-alert-system/internal/reconcile"
	"github.com/mmeshcher/order-alert-system/internal/repository"
)

type stubService struct {
	createID  string
	createErr error
	created   *model.Order

	reviewErr error
	reviewed  []string

	savedToken *model.DeliveryToken
	tokenErr   error
}

func (s *stubService) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	s.created = o
	return s.createID, s.createErr
}

func (s *stubService) MarkReviewed(ctx context.Context, id string) error {
	s.reviewed = append(s.reviewed, id)
	return s.reviewErr
}

func (s *stubService) SaveDeliveryToken(ctx context.Context, t *model.DeliveryToken) error {
	s.savedToken = t
	return s.tokenErr
}

type stubDashboard struct {
	view      reconcile.View
	ackCalled bool
}

func (d *stubDashboard) View() reconcile.View {
	return d.view
}

func (d *stubDashboard) Acknowledge() {
	d.ackCalled = true
}

func newTestHandler(t *testing.T, svc OrderService, dash Dashboard) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")
	admin := AdminCredentials{ID: "superAdmin01", Login: "admin", Password: "secret"}

	return NewHandler(svc, dash, logger, auth, admin, NewLiveHub(logger, nil), nil)
}

func loadedView(pending, reviewed []model.Order, unseen int) reconcile.View {
	return reconcile.View{
		Pending:   pending,
		Reviewed:  reviewed,
		Unseen:    unseen,
		Watermark: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC),
		Loaded:    true,
	}
}

func TestLogin_Success(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubDashboard{})

	body, _ := json.Marshal(credentialsRequest{Login: "admin", Password: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie was not set")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubDashboard{})

	body, _ := json.Marshal(credentialsRequest{Login: "admin", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubService{createID: "order-1"}
	h := newTestHandler(t, svc, &stubDashboard{})

	body, _ := json.Marshal(createOrderRequest{
		CustomerName: "Ana",
		Total:        2550,
		Items: []orderItemRequest{
			{Name: "Pizza", Quantity: 1},
			{Name: "Soda", Quantity: 2},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "order-1" {
		t.Fatalf("id = %q, want order-1", resp["id"])
	}
	if svc.created == nil || svc.created.Total != 2550 || len(svc.created.Items) != 2 {
		t.Fatalf("order not passed to service: %+v", svc.created)
	}
}

func TestCreateOrder_BadJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubDashboard{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestPendingOrders_NotLoaded(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubDashboard{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/pending", nil)
	rec := httptest.NewRecorder()

	h.PendingOrders(rec, req)

	if rec.Result().StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

func TestPendingOrders_OK(t *testing.T) {
	dash := &stubDashboard{
		view: loadedView([]model.Order{
			{ID: "1", CustomerName: "Ana", Total: 2550, Items: []model.OrderItem{}, CreatedAt: time.Now()},
		}, nil, 0),
	}
	h := newTestHandler(t, &stubService{}, dash)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/pending", nil)
	rec := httptest.NewRecorder()

	h.PendingOrders(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].CustomerName != "Ana" || resp[0].Total != 2550 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSummary(t *testing.T) {
	dash := &stubDashboard{
		view: loadedView(
			[]model.Order{{ID: "1"}, {ID: "2"}},
			[]model.Order{{ID: "3"}},
			5,
		),
	}
	h := newTestHandler(t, &stubService{}, dash)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/summary", nil)
	rec := httptest.NewRecorder()

	h.Summary(rec, req)

	var resp summaryResponse
	if err := json.NewDecoder(rec.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PendingCount != 2 || resp.ReviewedCount != 1 || resp.Unseen != 5 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if resp.Watermark == 0 {
		t.Fatalf("watermark must be set for a loaded view")
	}
}

func reviewRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/"+id+"/review", nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestReviewOrder_OK(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, &stubDashboard{})

	rec := httptest.NewRecorder()
	h.ReviewOrder(rec, reviewRequest("order-1"))

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
	if len(svc.reviewed) != 1 || svc.reviewed[0] != "order-1" {
		t.Fatalf("review not written to store: %v", svc.reviewed)
	}
}

func TestReviewOrder_NotFound(t *testing.T) {
	svc := &stubService{reviewErr: repository.ErrOrderNotFound}
	h := newTestHandler(t, svc, &stubDashboard{})

	rec := httptest.NewRecorder()
	h.ReviewOrder(rec, reviewRequest("missing"))

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestAcknowledge(t *testing.T) {
	dash := &stubDashboard{}
	h := newTestHandler(t, &stubService{}, dash)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/notifications/ack", nil)
	rec := httptest.NewRecorder()

	h.Acknowledge(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
	if !dash.ackCalled {
		t.Fatalf("acknowledge was not forwarded to the dashboard state")
	}
}

func TestSaveToken_OK(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, &stubDashboard{})

	body, _ := json.Marshal(saveTokenRequest{Token: "fcm-token-1", DeviceInfo: "Mozilla/5.0"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SaveToken(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
	if svc.savedToken == nil || svc.savedToken.Token != "fcm-token-1" {
		t.Fatalf("token not saved: %+v", svc.savedToken)
	}
	if svc.savedToken.AdminID != "superAdmin01" {
		t.Fatalf("token saved for %q, want configured admin identity", svc.savedToken.AdminID)
	}
}

func TestSaveToken_Empty(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubDashboard{})

	body, _ := json.Marshal(saveTokenRequest{Token: ""})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SaveToken(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}
