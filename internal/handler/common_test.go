package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"go-gin-reservation-ledger/internal/handler"
	"go-gin-reservation-ledger/internal/middleware"
	"go-gin-reservation-ledger/internal/model"
	"go-gin-reservation-ledger/internal/notify"
	"go-gin-reservation-ledger/internal/service/mocks"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	ownerIdentity = "ana@test.com"
	adminIdentity = "admin@test.com"

	identityHeader   = "X-Test-Identity"
	privilegedHeader = "X-Test-Privileged"
)

var (
	InvalidJSON = `{"invalid": json}`
)

// fakeAuthenticate 測試用，身分直接由 header 帶入
func fakeAuthenticate(c *gin.Context) {
	identity := c.GetHeader(identityHeader)
	if identity == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
		return
	}
	middleware.SetIdentity(c, identity, c.GetHeader(privilegedHeader) == "true")
	c.Next()
}

type testServices struct {
	reservations *mocks.ReservationServiceMock
	redemptions  *mocks.RedemptionServiceMock
	events       *mocks.EventServiceMock
	hub          *notify.Hub
}

func setupTestRouter() (*gin.Engine, *testServices) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	services := &testServices{
		reservations: mocks.NewReservationServiceMock(),
		redemptions:  mocks.NewRedemptionServiceMock(),
		events:       mocks.NewEventServiceMock(),
		hub:          notify.NewHub(8),
	}

	handler.NewReservationHandler(services.reservations).RegisterRoutes(router, fakeAuthenticate)
	handler.NewRedemptionHandler(services.redemptions).RegisterRoutes(router, fakeAuthenticate)
	handler.NewEventHandler(services.events).RegisterRoutes(router, fakeAuthenticate)
	handler.NewChangeStreamHandler(services.hub).RegisterRoutes(router, fakeAuthenticate)

	return router, services
}

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	if raw, ok := data.(string); ok {
		return bytes.NewBufferString(raw)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

// create HTTP request with JSON body
func createJSONHTTPRequest(method, url string, data interface{}) *http.Request {
	req := httptest.NewRequest(method, url, createJSONRequest(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, identity string) *http.Request {
	req.Header.Set(identityHeader, identity)
	return req
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set(identityHeader, adminIdentity)
	req.Header.Set(privilegedHeader, "true")
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testReservation(status model.ReservationStatus) *model.Reservation {
	now := time.Now().UTC()
	return &model.Reservation{
		ID:             "r-1",
		OwnerIdentity:  ownerIdentity,
		DisplayName:    "Ana",
		EventTitle:     "BACK TO SCHOOL PARTY",
		Class:          "Periquera",
		RequestedUnits: 3,
		UnitPrice:      decimal.NewFromInt(100),
		TotalAmount:    decimal.NewFromInt(300),
		Status:         status,
		RemainingUnits: 3,
		ProofReference: "proofs/ana.jpg",
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
