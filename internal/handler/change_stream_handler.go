package handler

import (
	"net/http"
	"time"

	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/notify"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ChangeStreamHandler 以 websocket 推送預約變更
// 管理員收到全部預約，一般使用者只收到自己的
type ChangeStreamHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

func NewChangeStreamHandler(hub *notify.Hub) *ChangeStreamHandler {
	return &ChangeStreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *ChangeStreamHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	r.GET("/api/v1/changes", authenticate, h.Stream)
}

func (h *ChangeStreamHandler) Stream(c *gin.Context) {
	identity, _ := middleware.Identity(c)
	log := logger.WithComponent("handler").With(zap.String("operation", "Stream"), zap.String("identity", identity))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經回應錯誤
		log.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(identity, middleware.IsPrivileged(c))
	defer sub.Close()
	log.Info("Change stream connected", zap.String("subscription_id", sub.ID))

	// 客戶端不會送訊息，讀取只用來偵測斷線與處理 pong
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("Unexpected close", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case notice, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(notice); err != nil {
				log.Warn("Failed to write change notice", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			log.Info("Change stream disconnected",
				zap.String("subscription_id", sub.ID),
				zap.Int64("dropped", sub.Dropped()))
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
