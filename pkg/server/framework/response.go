package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Respond converts a Go value to JSON and sends it to the client.
func Respond(c *gin.Context, data any, statusCode int) {
	if statusCode == http.StatusNoContent {
		c.Status(statusCode)
		return
	}
	c.IndentedJSON(statusCode, data)
}

// RespondError sends an error response back to the client. If the error is a
// SafeError its message and fields are sent as is; anything else gets a generic
// 500 so that sensitive detail never leaves the process.
func RespondError(c *gin.Context, err error) {
	var safeErr *SafeError
	if errors.As(errors.Cause(err), &safeErr) {
		Respond(c, ErrorResponse{Error: safeErr.Err.Error(), Fields: safeErr.Fields}, safeErr.StatusCode)
		return
	}
	Respond(c, ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError)
}

// LoggingRespondError logs the error and responds with it as a request error of
// the given status.
func LoggingRespondError(c *gin.Context, err error, statusCode int) error {
	logrus.WithError(err).Error()
	requestErr := NewRequestError(err, statusCode)
	RespondError(c, requestErr)
	return requestErr
}

// LoggingRespondErrMsg logs and responds with a fresh error from the message.
func LoggingRespondErrMsg(c *gin.Context, errMsg string, statusCode int) error {
	return LoggingRespondError(c, errors.New(errMsg), statusCode)
}

// LoggingRespondErrWithMsg logs and responds with the error wrapped with extra context.
func LoggingRespondErrWithMsg(c *gin.Context, err error, errMsg string, statusCode int) error {
	return LoggingRespondError(c, errors.Wrap(err, errMsg), statusCode)
}
