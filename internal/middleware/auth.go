package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/partyfinder/internal/auth"
	"github.com/charlesng35/partyfinder/pkg/errors"
	"github.com/charlesng35/partyfinder/pkg/response"
)

const (
	CtxClaimsKey      = "authClaims"
	CtxUserIDKey      = "userID"
	CtxDisplayNameKey = "displayName"

	// TokenQueryParam carries the token for websocket upgrades, where browsers cannot set headers.
	TokenQueryParam = "token"
)

// TokenValidator verifies bearer tokens issued by the identity collaborator.
type TokenValidator interface {
	ValidateToken(token string) (*iauth.Claims, error)
}

// Auth enforces JWT authentication and stores the caller identity on the context.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			// every validation failure maps to 401
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.DisplayName != "" {
			c.Set(CtxDisplayNameKey, claims.DisplayName)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if c.Request.Method == "GET" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return strings.TrimSpace(c.Query(TokenQueryParam))
	}
	return ""
}
