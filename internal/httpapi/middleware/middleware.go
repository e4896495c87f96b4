package middleware

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/llm-workflow/internal/auth"
	"github.com/suPer8Hu/llm-workflow/internal/common"
)

const (
	UserIDKey    = "user_id"
	ClaimsKey    = "claims"
	RequestIDKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic request_id=%v path=%s err=%v\n%s", c.Value(RequestIDKey), c.Request.URL.Path, r, debug.Stack())
				common.Abort(c, http.StatusInternalServerError, 50000, "internal error")
			}
		}()
		c.Next()
	}
}

// RequestID propagates an incoming X-Request-ID or mints a UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AuthRequired accepts "Authorization: Bearer <jwt>". revoked may be nil.
func AuthRequired(secret string, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			common.Abort(c, http.StatusUnauthorized, 40101, "missing bearer token")
			return
		}
		claims, err := auth.ParseJWT(token, secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Printf("[AuthRequired] revocation check failed jti=%s err=%v", claims.ID, err)
				common.Abort(c, http.StatusServiceUnavailable, 50301, "token store unavailable")
				return
			}
			if isRevoked {
				common.Abort(c, http.StatusUnauthorized, 40103, "token revoked")
				return
			}
		}
		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
