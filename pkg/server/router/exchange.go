package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/pkg/server/framework"
	"github.com/spendgate/spendgate/pkg/service/challenge"
	"github.com/spendgate/spendgate/pkg/service/exchange"
	svcframework "github.com/spendgate/spendgate/pkg/service/framework"
)

type ExchangeRouter struct {
	service *exchange.Service
}

func NewExchangeRouter(s svcframework.Service) (*ExchangeRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	service, ok := s.(*exchange.Service)
	if !ok {
		return nil, fmt.Errorf("could not create exchange router with service type: %s", s.Type())
	}
	return &ExchangeRouter{service: service}, nil
}

type ExchangePresentationRequest struct {
	// Challenge and Domain are the caller-asserted binding pair; both must
	// match the presentation proof by exact value.
	Challenge    string                  `json:"challenge" validate:"required"`
	Domain       string                  `json:"domain" validate:"required"`
	Presentation credential.Presentation `json:"presentation" validate:"required"`
}

type ExchangePresentationResponse struct {
	Token     keyaccess.JWT `json:"token"`
	ID        string        `json:"id"`
	Subject   string        `json:"subject"`
	Audience  string        `json:"audience"`
	Scope     string        `json:"scope"`
	IssuedAt  time.Time     `json:"issuedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// ExchangePresentation trades a verified presentation for a scoped token.
// Rejections distinguish malformed requests from denials, and a consumed nonce
// from everything else, but never reveal which nonces are outstanding.
func (er ExchangeRouter) ExchangePresentation(c *gin.Context) error {
	var request ExchangePresentationRequest
	invalidRequest := "invalid exchange request"
	if err := framework.Decode(c.Request, &request); err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, invalidRequest, http.StatusBadRequest)
	}

	minted, err := er.service.ExchangePresentation(c, &request.Presentation, request.Challenge, request.Domain)
	if err != nil {
		return respondExchangeError(c, err)
	}

	resp := ExchangePresentationResponse{
		Token:     minted.Token,
		ID:        minted.ID,
		Subject:   minted.Subject,
		Audience:  minted.Audience,
		Scope:     minted.Scope,
		IssuedAt:  minted.IssuedAt,
		ExpiresAt: minted.ExpiresAt,
	}
	framework.Respond(c, resp, http.StatusCreated)
	return nil
}

func respondExchangeError(c *gin.Context, err error) error {
	var replay *challenge.ReplayError
	if errors.As(err, &replay) {
		status := http.StatusForbidden
		if replay.Reason == challenge.ReasonUsed {
			status = http.StatusConflict
		}
		return framework.LoggingRespondError(c, replay, status)
	}
	var verification *exchange.VerificationError
	if errors.As(err, &verification) {
		return framework.LoggingRespondError(c, verification, http.StatusForbidden)
	}
	return framework.LoggingRespondErrWithMsg(c, err, "could not exchange presentation", http.StatusInternalServerError)
}
