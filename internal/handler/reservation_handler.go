package handler

import (
	"net/http"

	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/service"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(service service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	router := r.Group("/api/v1/reservations", authenticate)
	{
		router.POST("", h.Submit)
		router.GET("mine", h.ListMine)
		router.GET(":id", h.Get)

		admin := router.Group("", middleware.RequirePrivileged())
		admin.GET("", h.ListAll)
		admin.PUT(":id/confirm", h.Confirm)
		admin.PUT(":id/reject", h.Reject)
		admin.DELETE(":id", h.Remove)
	}
}

func (h *ReservationHandler) Submit(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		handleError(c, apperrors.ErrUnauthorized, "Submit")
		return
	}

	var req model.CreateReservationRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	created, err := h.service.Submit(c, model.SubmitReservationParams{
		OwnerIdentity:  identity,
		DisplayName:    req.DisplayName,
		Phone:          req.Phone,
		Program:        req.Program,
		Semester:       req.Semester,
		Class:          req.Class,
		RequestedUnits: req.RequestedUnits,
		ProofReference: req.ProofReference,
	})
	if err != nil {
		handleError(c, err, "Submit")
		return
	}

	handleSuccess(c, created, http.StatusCreated)
}

func (h *ReservationHandler) ListMine(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		handleError(c, apperrors.ErrUnauthorized, "ListMine")
		return
	}

	reservations, err := h.service.ListByOwner(c, identity)
	if err != nil {
		handleError(c, err, "ListMine")
		return
	}

	handleSuccess(c, reservations, http.StatusOK)
}

func (h *ReservationHandler) ListAll(c *gin.Context) {
	reservations, err := h.service.ListAll(c)
	if err != nil {
		handleError(c, err, "ListAll")
		return
	}

	handleSuccess(c, reservations, http.StatusOK)
}

// Get 非本人且非管理員一律視為不存在
func (h *ReservationHandler) Get(c *gin.Context) {
	reservation, err := h.service.Get(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "Get")
		return
	}

	identity, _ := middleware.Identity(c)
	if !middleware.IsPrivileged(c) && reservation.OwnerIdentity != identity {
		handleError(c, apperrors.ErrReservationNotFound, "Get")
		return
	}

	handleSuccess(c, reservation, http.StatusOK)
}

func (h *ReservationHandler) Confirm(c *gin.Context) {
	confirmed, err := h.service.Confirm(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "Confirm")
		return
	}

	handleSuccess(c, confirmed, http.StatusOK)
}

func (h *ReservationHandler) Reject(c *gin.Context) {
	rejected, err := h.service.Reject(c, c.Param("id"))
	if err != nil {
		handleError(c, err, "Reject")
		return
	}

	handleSuccess(c, rejected, http.StatusOK)
}

func (h *ReservationHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c, c.Param("id")); err != nil {
		handleError(c, err, "Remove")
		return
	}

	handleSuccess(c, nil, http.StatusNoContent)
}
