package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clubhub-dev/clubhub-api/internal/middleware"
	"github.com/clubhub-dev/clubhub-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func identityFromContext(c *gin.Context) models.Identity {
	return claimsFromContext(c).Identity()
}

// parseDateParam reads an ISO date (2006-01-02) from the named query
// parameter.
func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
