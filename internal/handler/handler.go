// Package handler содержит HTTP-обработчики API панели заказов.
package handler

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-alert-system/internal/metrics"
	"github.com/mmeshcher/order-alert-system/internal/middleware"
	"github.com/mmeshcher/order-alert-system/internal/model"
	"github.com/mmeshcher/order-alert-system/internal/reconcile"
	"github.com/mmeshcher/order-alert-system/internal/repository"
)

// OrderService определяет контракт записи в хранилище, используемый HTTP-обработчиками.
type OrderService interface {
	CreateOrder(ctx context.Context, o *model.Order) (string, error)
	MarkReviewed(ctx context.Context, id string) error
	SaveDeliveryToken(ctx context.Context, t *model.DeliveryToken) error
}

// Dashboard определяет контракт чтения живого состояния панели.
type Dashboard interface {
	View() reconcile.View
	Acknowledge()
}

// AdminCredentials содержит учётные данные единственного администратора панели.
type AdminCredentials struct {
	ID       string
	Login    string
	Password string
}

// Handler реализует HTTP-обработчики API панели заказов.
type Handler struct {
	service        OrderService
	dashboard      Dashboard
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	admin          AdminCredentials
	hub            *LiveHub
	metrics        *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s OrderService, d Dashboard, logger *zap.Logger, auth *middleware.AuthMiddleware, admin AdminCredentials, hub *LiveHub, m *metrics.Metrics) *Handler {
	return &Handler{
		service:        s,
		dashboard:      d,
		logger:         logger,
		authMiddleware: auth,
		admin:          admin,
		hub:            hub,
		metrics:        m,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию администратора и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.checkCredentials(req.Login, req.Password) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Login)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) checkCredentials(login, password string) bool {
	wantLogin := sha256.Sum256([]byte(h.admin.Login))
	gotLogin := sha256.Sum256([]byte(login))
	wantPass := sha256.Sum256([]byte(h.admin.Password))
	gotPass := sha256.Sum256([]byte(password))

	loginOK := subtle.ConstantTimeCompare(wantLogin[:], gotLogin[:]) == 1
	passOK := subtle.ConstantTimeCompare(wantPass[:], gotPass[:]) == 1
	return loginOK && passOK && h.admin.Password != ""
}

// Logout завершает сессию администратора.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if login, ok := middleware.GetAdminLoginFromContext(r.Context()); ok {
		h.logger.Info("admin logged out", zap.String("login", login))
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type orderItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

type createOrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	Total         int64              `json:"total"`
	Items         []orderItemRequest `json:"items"`
	Address       string             `json:"address"`
	Phone         string             `json:"phone"`
	PaymentMethod string             `json:"payment_method"`
	Note          string             `json:"note"`
}

// CreateOrder принимает новый заказ от клиентского приложения меню.
// Пропущенные поля не являются ошибкой: они замещаются значениями по
// умолчанию при чтении.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.OrderItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Note:     it.Note,
		})
	}

	order := &model.Order{
		CustomerName:  req.CustomerName,
		Total:         req.Total,
		Items:         items,
		Address:       req.Address,
		Phone:         req.Phone,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
	}

	id, err := h.service.CreateOrder(r.Context(), order)
	if err != nil {
		h.logger.Error("create order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersReceived.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]string{"id": id}); err != nil {
		h.logger.Error("encode create order response", zap.Error(err))
	}
}

type orderResponse struct {
	ID            string            `json:"id"`
	CustomerName  string            `json:"customer_name"`
	Total         int64             `json:"total"`
	Items         []model.OrderItem `json:"items"`
	Address       string            `json:"address"`
	Phone         string            `json:"phone"`
	PaymentMethod string            `json:"payment_method"`
	Note          string            `json:"note"`
	CreatedAt     string            `json:"created_at"`
	Reviewed      bool              `json:"reviewed"`
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			ID:            o.ID,
			CustomerName:  o.CustomerName,
			Total:         o.Total,
			Items:         o.Items,
			Address:       o.Address,
			Phone:         o.Phone,
			PaymentMethod: o.PaymentMethod,
			Note:          o.Note,
			CreatedAt:     o.CreatedAt.Format(time.RFC3339),
			Reviewed:      o.Reviewed,
		})
	}
	return resp
}

// PendingOrders возвращает раздел непросмотренных заказов.
func (h *Handler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	v := h.dashboard.View()
	if !v.Loaded {
		http.Error(w, "orders could not be loaded", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, toOrderResponses(v.Pending))
}

// ReviewedOrders возвращает раздел просмотренных заказов.
func (h *Handler) ReviewedOrders(w http.ResponseWriter, r *http.Request) {
	v := h.dashboard.View()
	if !v.Loaded {
		http.Error(w, "orders could not be loaded", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, toOrderResponses(v.Reviewed))
}

type summaryResponse struct {
	PendingCount  int   `json:"pending_count"`
	ReviewedCount int   `json:"reviewed_count"`
	Unseen        int   `json:"unseen"`
	Watermark     int64 `json:"watermark"`
	Loaded        bool  `json:"loaded"`
}

func toSummary(v reconcile.View) summaryResponse {
	var watermark int64
	if !v.Watermark.IsZero() {
		watermark = v.Watermark.UnixMilli()
	}
	return summaryResponse{
		PendingCount:  len(v.Pending),
		ReviewedCount: len(v.Reviewed),
		Unseen:        v.Unseen,
		Watermark:     watermark,
		Loaded:        v.Loaded,
	}
}

// Summary возвращает счётчики панели для бейджа уведомлений.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, toSummary(h.dashboard.View()))
}

// ReviewOrder помечает заказ просмотренным в хранилище. Локальное состояние
// не меняется: заказ переедет из pending в reviewed на следующей эмиссии
// потока, когда изменение вернётся из хранилища.
func (h *Handler) ReviewOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkReviewed(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("mark reviewed error", zap.Error(err), zap.String("orderID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Acknowledge сбрасывает счётчик непросмотренных заказов.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.dashboard.Acknowledge()
	w.WriteHeader(http.StatusOK)
}

type saveTokenRequest struct {
	Token      string `json:"token"`
	DeviceInfo string `json:"device_info"`
}

// SaveToken сохраняет свежий токен доставки уведомлений администратора.
func (h *Handler) SaveToken(w http.ResponseWriter, r *http.Request) {
	var req saveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SaveDeliveryToken(r.Context(), &model.DeliveryToken{
		AdminID:    h.admin.ID,
		Token:      req.Token,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		h.logger.Error("save delivery token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
