package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/partyfinder/internal/middleware"
	"github.com/charlesng35/partyfinder/internal/services"
	"github.com/charlesng35/partyfinder/pkg/errors"
	"github.com/charlesng35/partyfinder/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// currentUser returns the authenticated user id. It writes a 401 and returns
// false when the auth middleware did not run.
func currentUser(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func actorFor(c *gin.Context, userID string) services.Actor {
	return services.Actor{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func pathParam(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
