package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-gin-reservation-ledger/internal/model"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSubmitReservation(t *testing.T) {
	request := model.CreateReservationRequest{
		DisplayName:    "Ana",
		Class:          "Periquera",
		RequestedUnits: 2,
		ProofReference: "proofs/ana.jpg",
	}

	t.Run("Success", func(t *testing.T) {
		router, services := setupTestRouter()

		expected := model.SubmitReservationParams{
			OwnerIdentity:  ownerIdentity,
			DisplayName:    "Ana",
			Class:          "Periquera",
			RequestedUnits: 2,
			ProofReference: "proofs/ana.jpg",
		}
		services.reservations.On("Submit", mock.Anything, expected).
			Return(testReservation(model.ReservationStatusPending), nil).Once()

		w := serve(router, asUser(createJSONHTTPRequest("POST", "/api/v1/reservations", request), ownerIdentity))

		assert.Equal(t, http.StatusCreated, w.Code)
		var body model.Reservation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 3, body.RequestedUnits)
		assert.Equal(t, "300", body.TotalAmount.String())
		services.reservations.AssertExpectations(t)
	})

	t.Run("Failed - Validation", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Submit", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: unknown class \"VIP\"", apperrors.ErrValidation)).Once()

		w := serve(router, asUser(createJSONHTTPRequest("POST", "/api/v1/reservations", request), ownerIdentity))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown class")
	})

	t.Run("Failed - Sales Closed", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Submit", mock.Anything, mock.Anything).Return(nil, apperrors.ErrSalesClosed).Once()

		w := serve(router, asUser(createJSONHTTPRequest("POST", "/api/v1/reservations", request), ownerIdentity))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Failed - Internal Error", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		w := serve(router, asUser(createJSONHTTPRequest("POST", "/api/v1/reservations", request), ownerIdentity))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Failed - BindingError", func(t *testing.T) {
		router, services := setupTestRouter()

		w := serve(router, asUser(createJSONHTTPRequest("POST", "/api/v1/reservations", InvalidJSON), ownerIdentity))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		services.reservations.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("Failed - Unauthenticated", func(t *testing.T) {
		router, services := setupTestRouter()

		w := serve(router, createJSONHTTPRequest("POST", "/api/v1/reservations", request))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		services.reservations.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func TestGetReservation(t *testing.T) {
	t.Run("Success - Owner", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Get", mock.Anything, "r-1").Return(testReservation(model.ReservationStatusPending), nil).Once()

		w := serve(router, asUser(httptest.NewRequest("GET", "/api/v1/reservations/r-1", nil), ownerIdentity))

		assert.Equal(t, http.StatusOK, w.Code)
		services.reservations.AssertExpectations(t)
	})

	t.Run("Success - Admin", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Get", mock.Anything, "r-1").Return(testReservation(model.ReservationStatusPending), nil).Once()

		w := serve(router, asAdmin(httptest.NewRequest("GET", "/api/v1/reservations/r-1", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Failed - Other User Sees Not Found", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Get", mock.Anything, "r-1").Return(testReservation(model.ReservationStatusPending), nil).Once()

		w := serve(router, asUser(httptest.NewRequest("GET", "/api/v1/reservations/r-1", nil), "eve@test.com"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Failed - Not Found", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Get", mock.Anything, "missing").Return(nil, apperrors.ErrReservationNotFound).Once()

		w := serve(router, asUser(httptest.NewRequest("GET", "/api/v1/reservations/missing", nil), ownerIdentity))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListReservations(t *testing.T) {
	t.Run("Mine", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("ListByOwner", mock.Anything, ownerIdentity).
			Return([]*model.Reservation{testReservation(model.ReservationStatusPaid)}, nil).Once()

		w := serve(router, asUser(httptest.NewRequest("GET", "/api/v1/reservations/mine", nil), ownerIdentity))

		assert.Equal(t, http.StatusOK, w.Code)
		var body []model.Reservation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body, 1)
		services.reservations.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("All - Admin", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("ListAll", mock.Anything).Return([]*model.Reservation{}, nil).Once()

		w := serve(router, asAdmin(httptest.NewRequest("GET", "/api/v1/reservations", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("All - Forbidden", func(t *testing.T) {
		router, services := setupTestRouter()

		w := serve(router, asUser(httptest.NewRequest("GET", "/api/v1/reservations", nil), ownerIdentity))

		assert.Equal(t, http.StatusForbidden, w.Code)
		services.reservations.AssertNotCalled(t, "ListAll", mock.Anything)
	})
}

func TestDecideReservation(t *testing.T) {
	t.Run("Confirm - Success", func(t *testing.T) {
		router, services := setupTestRouter()
		paid := testReservation(model.ReservationStatusPaid)
		payload := `{"v":2,"id":"r-1"}`
		paid.CredentialPayload = &payload
		services.reservations.On("Confirm", mock.Anything, "r-1").Return(paid, nil).Once()

		w := serve(router, asAdmin(httptest.NewRequest("PUT", "/api/v1/reservations/r-1/confirm", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "credential_payload")
	})

	t.Run("Confirm - Invalid Transition", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Confirm", mock.Anything, "r-1").
			Return(nil, fmt.Errorf("%w: reservation is paid", apperrors.ErrInvalidTransition)).Once()

		w := serve(router, asAdmin(httptest.NewRequest("PUT", "/api/v1/reservations/r-1/confirm", nil)))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Confirm - Contention", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Confirm", mock.Anything, "r-1").Return(nil, apperrors.ErrContention).Once()

		w := serve(router, asAdmin(httptest.NewRequest("PUT", "/api/v1/reservations/r-1/confirm", nil)))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("Confirm - Forbidden", func(t *testing.T) {
		router, services := setupTestRouter()

		w := serve(router, asUser(httptest.NewRequest("PUT", "/api/v1/reservations/r-1/confirm", nil), ownerIdentity))

		assert.Equal(t, http.StatusForbidden, w.Code)
		services.reservations.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("Reject - Success", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Reject", mock.Anything, "r-1").Return(testReservation(model.ReservationStatusRejected), nil).Once()

		w := serve(router, asAdmin(httptest.NewRequest("PUT", "/api/v1/reservations/r-1/reject", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
		services.reservations.AssertExpectations(t)
	})
}

func TestRemoveReservation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Remove", mock.Anything, "r-1").Return(nil).Once()

		w := serve(router, asAdmin(httptest.NewRequest("DELETE", "/api/v1/reservations/r-1", nil)))

		assert.Equal(t, http.StatusNoContent, w.Code)
		services.reservations.AssertExpectations(t)
	})

	t.Run("Failed - Not Found", func(t *testing.T) {
		router, services := setupTestRouter()
		services.reservations.On("Remove", mock.Anything, "r-1").Return(apperrors.ErrReservationNotFound).Once()

		w := serve(router, asAdmin(httptest.NewRequest("DELETE", "/api/v1/reservations/r-1", nil)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
