package handler

import (
	"net/http"

	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// RedemptionHandler 入口掃描用，全部需要管理員
type RedemptionHandler struct {
	service service.RedemptionService
}

func NewRedemptionHandler(service service.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{service: service}
}

func (h *RedemptionHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	router := r.Group("/api/v1", authenticate, middleware.RequirePrivileged())
	{
		router.POST("reservations/:id/redeem", h.Redeem)
		router.GET("reservations/:id/balance", h.Balance)
		router.POST("redemptions", h.RedeemCredential)
		router.POST("credentials/resolve", h.Resolve)
	}
}

func (h *RedemptionHandler) Redeem(c *gin.Context) {
	var req model.RedeemRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	result, err := h.service.Redeem(c, c.Param("id"), req.Units)
	if err != nil {
		handleError(c, err, "Redeem")
		return
	}

	handleSuccess(c, result, http.StatusOK)
}

func (h *RedemptionHandler) RedeemCredential(c *gin.Context) {
	var req model.RedeemCredentialRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	result, err := h.service.RedeemCredential(c, req.Credential, req.Units)
	if err != nil {
		handleError(c, err, "RedeemCredential")
		return
	}

	handleSuccess(c, result, http.StatusOK)
}

func (h *RedemptionHandler) Resolve(c *gin.Context) {
	var req model.ResolveCredentialRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	resolved, err := h.service.Resolve(c, req.Credential)
	if err != nil {
		handleError(c, err, "Resolve")
		return
	}

	handleSuccess(c, resolved, http.StatusOK)
}

func (h *RedemptionHandler) Balance(c *gin.Context) {
	view, err := h.service.Balance(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "Balance")
		return
	}

	handleSuccess(c, view, http.StatusOK)
}
