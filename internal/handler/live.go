package handler

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-alert-system/internal/metrics"
	"github.com/mmeshcher/order-alert-system/internal/reconcile"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type liveUpdate struct {
	Pending  []orderResponse `json:"pending"`
	Reviewed []orderResponse `json:"reviewed"`
	Summary  summaryResponse `json:"summary"`
}

func toLiveUpdate(v reconcile.View) liveUpdate {
	return liveUpdate{
		Pending:  toOrderResponses(v.Pending),
		Reviewed: toOrderResponses(v.Reviewed),
		Summary:  toSummary(v),
	}
}

// LiveHub раздаёт состояние панели по websocket-соединениям. На каждой
// эмиссии потока все подключённые клиенты получают свежий срез.
type LiveHub struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewLiveHub создаёт пустой хаб живых подключений.
func NewLiveHub(logger *zap.Logger, m *metrics.Metrics) *LiveHub {
	return &LiveHub{
		logger:  logger,
		metrics: m,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Broadcast рассылает срез состояния всем подключённым клиентам.
// Соединение, в которое не удалось записать, закрывается и удаляется.
func (hub *LiveHub) Broadcast(v reconcile.View) {
	update := toLiveUpdate(v)

	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn := range hub.conns {
		if err := conn.WriteJSON(update); err != nil {
			hub.logger.Warn("write live update", zap.Error(err))
			hub.dropLocked(conn)
		}
	}
}

func (hub *LiveHub) add(conn *websocket.Conn) {
	hub.mu.Lock()
	hub.conns[conn] = struct{}{}
	hub.mu.Unlock()

	if hub.metrics != nil {
		hub.metrics.LiveConnections.Inc()
	}
}

func (hub *LiveHub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	_, ok := hub.conns[conn]
	if ok {
		hub.dropLocked(conn)
	}
	hub.mu.Unlock()
}

func (hub *LiveHub) dropLocked(conn *websocket.Conn) {
	delete(hub.conns, conn)
	conn.Close()

	if hub.metrics != nil {
		hub.metrics.LiveConnections.Dec()
	}
}

// Live переводит запрос в websocket и держит соединение до закрытия клиентом.
// Сразу после установки клиент получает текущий срез состояния.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade live connection", zap.Error(err))
		return
	}

	if err := conn.WriteJSON(toLiveUpdate(h.dashboard.View())); err != nil {
		h.logger.Warn("write initial live update", zap.Error(err))
		conn.Close()
		return
	}

	h.hub.add(conn)
	defer h.hub.remove(conn)

	// Читаем до ошибки, чтобы заметить закрытие со стороны клиента.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
