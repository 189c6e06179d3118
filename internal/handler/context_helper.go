package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cems-project/cems-api/internal/middleware"
	"github.com/cems-project/cems-api/internal/models"
)

type userLoader interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type notificationSink interface {
	Dispatch(commands []models.NotificationCommand)
}

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func pageWindow(c *gin.Context) (limit, offset int) {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := queryInt(c, "page_size", 20)
	if size < 1 || size > 200 {
		size = 20
	}
	return size, (page - 1) * size
}
