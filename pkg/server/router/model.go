// Package router holds the HTTP bindings for each service.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spendgate/spendgate/internal/keyaccess"
)

// GetAuthToken extracts the bearer token from the Authorization header, empty
// when absent.
func GetAuthToken(c *gin.Context) keyaccess.JWT {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return keyaccess.JWT(strings.TrimSpace(token))
}
