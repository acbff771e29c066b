package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type GetHealthCheckResponse struct {
	Status string `json:"status"`
}

const HealthOK = "OK"

// Health is a simple handler that always responds with a 200 OK
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, GetHealthCheckResponse{Status: HealthOK})
}
