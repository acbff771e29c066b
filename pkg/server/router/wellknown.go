package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/pkg/server/framework"
	svcframework "github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/service/token"
)

type WellKnownRouter struct {
	service *token.Service
}

func NewWellKnownRouter(s svcframework.Service) (*WellKnownRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	service, ok := s.(*token.Service)
	if !ok {
		return nil, fmt.Errorf("could not create well-known router with service type: %s", s.Type())
	}
	return &WellKnownRouter{service: service}, nil
}

// GetKeySet publishes the token signing key's public half as a JWKS, the set
// resource servers verify against.
func (wr WellKnownRouter) GetKeySet(c *gin.Context) error {
	set, err := wr.service.PublicKeySet()
	if err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, "could not load key set", http.StatusInternalServerError)
	}
	framework.Respond(c, set, http.StatusOK)
	return nil
}
