package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/pkg/server/framework"
	"github.com/spendgate/spendgate/pkg/service/challenge"
	"github.com/spendgate/spendgate/pkg/service/common"
	svcframework "github.com/spendgate/spendgate/pkg/service/framework"
)

type ChallengeRouter struct {
	service *challenge.Service
}

func NewChallengeRouter(s svcframework.Service) (*ChallengeRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	service, ok := s.(*challenge.Service)
	if !ok {
		return nil, fmt.Errorf("could not create challenge router with service type: %s", s.Type())
	}
	return &ChallengeRouter{service: service}, nil
}

type CreateChallengeRequest struct {
	// Domain the challenge will be bound to; presentations for any other
	// domain are rejected.
	Domain string `json:"domain" validate:"required"`
	// Intent optionally declares the action the eventual token will be
	// narrowed to.
	Intent string `json:"intent,omitempty"`
}

type CreateChallengeResponse struct {
	Nonce                   string            `json:"nonce"`
	Domain                  string            `json:"domain"`
	RequiredCredentialTypes []credential.Kind `json:"requiredCredentialTypes"`
	ExpiresAt               time.Time         `json:"expiresAt"`
}

// CreateChallenge issues a fresh single-use challenge bound to the requested domain.
func (cr ChallengeRouter) CreateChallenge(c *gin.Context) error {
	var request CreateChallengeRequest
	invalidRequest := "invalid create challenge request"
	if err := framework.Decode(c.Request, &request); err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, invalidRequest, http.StatusBadRequest)
	}

	issued, err := cr.service.IssueChallenge(c, request.Domain, common.Action(request.Intent))
	if err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, "could not issue challenge", http.StatusBadRequest)
	}

	resp := CreateChallengeResponse{
		Nonce:                   issued.Nonce,
		Domain:                  issued.Domain,
		RequiredCredentialTypes: issued.RequiredCredentialTypes,
		ExpiresAt:               issued.ExpiresAt,
	}
	framework.Respond(c, resp, http.StatusCreated)
	return nil
}
