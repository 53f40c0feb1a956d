package handler

import (
	"net/http"

	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	router := r.Group("/api/v1/event")
	{
		router.GET("", h.Info)
		router.PUT("sales", authenticate, middleware.RequirePrivileged(), h.SetSales)
	}
}

// Info 公開資訊，不需要登入
func (h *EventHandler) Info(c *gin.Context) {
	info, err := h.service.Info(c)
	if err != nil {
		handleError(c, err, "Info")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *EventHandler) SetSales(c *gin.Context) {
	var req model.UpdateSalesRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	info, err := h.service.SetSalesOpen(c, *req.Open)
	if err != nil {
		handleError(c, err, "SetSales")
		return
	}
	c.JSON(http.StatusOK, info)
}
