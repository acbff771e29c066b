package exchange

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/audit"
	"github.com/spendgate/spendgate/pkg/service/challenge"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/service/token"
)

const component = "exchange"

// Service runs the presentation-for-token exchange. It is the only component
// that can retire a nonce or cause a token to exist; everything a caller sends
// is treated as unproven until the pipeline says otherwise.
type Service struct {
	config    config.ExchangeServiceConfig
	registry  *Registry
	challenge *challenge.Service
	token     *token.Service
	audit     audit.Recorder
	audience  string
	clock     clock.Clock
}

func (s *Service) Type() framework.Type {
	return framework.Exchange
}

func (s *Service) Status() framework.Status {
	if s.challenge == nil || s.token == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "missing dependent services",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewExchangeService(cfg config.ExchangeServiceConfig, registry *Registry, challengeService *challenge.Service, tokenService *token.Service, recorder audit.Recorder, audience string, clk clock.Clock) (*Service, error) {
	if registry == nil {
		return nil, util.LoggingNewError("exchange service requires a trust registry")
	}
	if challengeService == nil {
		return nil, util.LoggingNewError("exchange service requires the challenge service")
	}
	if tokenService == nil {
		return nil, util.LoggingNewError("exchange service requires the token service")
	}
	return &Service{
		config:    cfg,
		registry:  registry,
		challenge: challengeService,
		token:     tokenService,
		audit:     recorder,
		audience:  audience,
		clock:     clk,
	}, nil
}

// ExchangePresentation verifies a presentation against the asserted challenge
// and domain, retires the nonce, derives the grant set from the verified
// claims, and mints a token. Verification precedes consumption, so a rejected
// presentation never burns its challenge; consumption precedes minting, so no
// token exists for a replayed one.
func (s *Service) ExchangePresentation(ctx context.Context, presentation *credential.Presentation, nonce, domain string) (*token.MintedToken, error) {
	holder := ""
	if presentation != nil {
		holder = presentation.Holder
	}
	if err := VerifyPresentation(presentation, nonce, domain, s.clock.Now(), s.registry); err != nil {
		var verification *VerificationError
		if errors.As(err, &verification) {
			s.record(ctx, audit.DecisionDenied, string(verification.Step), holder)
		}
		return nil, err
	}

	entry, err := s.challenge.ConsumeChallenge(ctx, nonce, domain)
	if err != nil {
		var replay *challenge.ReplayError
		if errors.As(err, &replay) {
			s.record(ctx, audit.DecisionDenied, "replay_"+string(replay.Reason), holder)
		}
		return nil, err
	}

	grants := DeriveGrants(presentation.Credentials, entry.Intent)
	snapshot := claimsSnapshot(presentation.Credentials)

	minted, err := s.token.MintToken(ctx, presentation.Holder, s.audience, grants, snapshot)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting token")
	}

	s.record(ctx, audit.DecisionGranted, "token_minted", presentation.Holder)
	logrus.WithFields(logrus.Fields{
		"subject": presentation.Holder,
		"scope":   minted.Scope,
		"jti":     minted.ID,
	}).Info("exchange succeeded")
	return minted, nil
}

func (s *Service) record(ctx context.Context, decision audit.Decision, reason, subject string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, component, decision, reason, subject, "")
}

// claimsSnapshot freezes the verified claims behind the grant set, keyed by
// credential kind. Unknown kinds are omitted: they contributed nothing.
func claimsSnapshot(credentials []credential.Credential) map[string]any {
	snapshot := make(map[string]any)
	for _, cred := range credentials {
		switch cred.Claims.(type) {
		case credential.EmploymentClaims, credential.ApprovalAuthorityClaims:
			snapshot[string(cred.Kind)] = cred.Claims
		}
	}
	if len(snapshot) == 0 {
		return nil
	}
	return snapshot
}
