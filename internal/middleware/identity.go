package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-gin-reservation-ledger/internal/repository"
	apperrors "go-gin-reservation-ledger/pkg/app_errors"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	identityKey   = "identity"
	privilegedKey = "privileged"

	// websocket 無法自訂 header，改由 query 帶 token
	accessTokenQuery = "access_token"
)

// Authorizer 判斷身分是否為管理員
type Authorizer interface {
	IsPrivileged(ctx context.Context, identity string) (bool, error)
}

// StaticAuthorizer 管理員名單來自設定檔
type StaticAuthorizer struct {
	identities map[string]struct{}
}

func NewStaticAuthorizer(identities []string) *StaticAuthorizer {
	set := make(map[string]struct{}, len(identities))
	for _, identity := range identities {
		if identity = normalize(identity); identity != "" {
			set[identity] = struct{}{}
		}
	}
	return &StaticAuthorizer{identities: set}
}

func (a *StaticAuthorizer) IsPrivileged(_ context.Context, identity string) (bool, error) {
	_, ok := a.identities[normalize(identity)]
	return ok, nil
}

// AdminAuthorizer 查詢 admins 資料表
type AdminAuthorizer struct {
	admins repository.AdminRepository
}

func NewAdminAuthorizer(admins repository.AdminRepository) *AdminAuthorizer {
	return &AdminAuthorizer{admins: admins}
}

func (a *AdminAuthorizer) IsPrivileged(ctx context.Context, identity string) (bool, error) {
	return a.admins.Exists(ctx, identity)
}

// Claims 身分服務簽發的 token，email 為空時使用 sub
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity 取 email，沒有時退回 sub
func (c *Claims) Identity() string {
	if email := normalize(c.Email); email != "" {
		return email
	}
	return normalize(c.Subject)
}

// Authenticate 驗證 HS256 bearer token，每個請求只詢問一次是否為管理員
func Authenticate(secret string, authorizer Authorizer) gin.HandlerFunc {
	log := logger.WithComponent("auth")
	key := []byte(secret)

	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			log.Warn("Rejected token", zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		identity := claims.Identity()
		if identity == "" {
			abortUnauthorized(c, "Token has no identity")
			return
		}

		privileged, err := authorizer.IsPrivileged(c.Request.Context(), identity)
		if err != nil {
			log.Error("Authorization lookup failed", zap.String("identity", identity), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
			return
		}

		SetIdentity(c, identity, privileged)
		c.Next()
	}
}

// RequirePrivileged 必須放在 Authenticate 之後
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsPrivileged(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": apperrors.ErrForbidden.Error(),
			})
			return
		}
		c.Next()
	}
}

func SetIdentity(c *gin.Context, identity string, privileged bool) {
	c.Set(identityKey, identity)
	c.Set(privilegedKey, privileged)
}

func Identity(c *gin.Context) (string, bool) {
	identity := c.GetString(identityKey)
	return identity, identity != ""
}

func IsPrivileged(c *gin.Context) bool {
	return c.GetBool(privilegedKey)
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query(accessTokenQuery); token != "" {
			return token, nil
		}
		return "", errors.New("Missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("Invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
