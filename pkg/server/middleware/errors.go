package middleware

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/pkg/server/framework"
)

// Errors handles errors coming out of the call stack. It detects safe
// application errors (aka SafeError) that are used to respond to the requester
// in a normalized way; shutdown-worthy errors signal the server instead.
func Errors(shutdown chan os.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		ginErrors := c.Errors.ByType(gin.ErrorTypeAny)
		if len(ginErrors) == 0 {
			return
		}
		for _, e := range ginErrors {
			if framework.IsShutdown(e.Err) {
				logrus.WithError(e.Err).Error("shutdown-worthy error")
				shutdown <- os.Interrupt
				return
			}
		}
		logrus.Errorf("request errors: %v", ginErrors)
	}
}
