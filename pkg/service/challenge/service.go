package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/storage"
)

// nonceByteLength is the entropy of each nonce before encoding. 32 bytes keeps
// guessing infeasible well past the 128-bit floor.
const nonceByteLength = 32

// Service issues and consumes single-use challenges. Each nonce is bound to
// the domain it was issued for and can be consumed at most once.
type Service struct {
	config  config.ChallengeServiceConfig
	storage Storage
	clock   clock.Clock
	done    chan struct{}
}

func (s *Service) Type() framework.Type {
	return framework.Challenge
}

func (s *Service) Status() framework.Status {
	if s.storage == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "no storage configured",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewChallengeService(cfg config.ChallengeServiceConfig, db storage.ServiceStorage, clk clock.Clock) (*Service, error) {
	challengeStorage, err := NewChallengeStorage(db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the challenge service")
	}
	service := Service{
		config:  cfg,
		storage: challengeStorage,
		clock:   clk,
		done:    make(chan struct{}),
	}
	return &service, nil
}

// Challenge is the issued form handed back to a requester: the nonce, the
// domain it is bound to, and what a presentation answering it must contain.
type Challenge struct {
	Nonce                   string            `json:"nonce"`
	Domain                  string            `json:"domain"`
	RequiredCredentialTypes []credential.Kind `json:"requiredCredentialTypes"`
	ExpiresAt               time.Time         `json:"expiresAt"`
}

// IssueChallenge mints a fresh nonce bound to the given domain, records it in
// the ledger, and returns the challenge for the requester to answer.
func (s *Service) IssueChallenge(ctx context.Context, domain string, intent common.Action) (*Challenge, error) {
	if domain == "" {
		return nil, util.LoggingNewError("cannot issue challenge without a domain")
	}
	if intent != "" && !intent.IsValid() {
		return nil, util.LoggingNewErrorf("cannot issue challenge for unknown intent: %s", intent)
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "generating nonce")
	}

	now := s.clock.Now()
	entry := StoredChallenge{
		Nonce:     nonce,
		Domain:    domain,
		Intent:    intent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.NonceTTL),
	}
	if err = s.storage.StoreChallenge(ctx, entry); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing challenge")
	}

	return &Challenge{
		Nonce:                   entry.Nonce,
		Domain:                  entry.Domain,
		RequiredCredentialTypes: RequiredCredentialTypes(intent),
		ExpiresAt:               entry.ExpiresAt,
	}, nil
}

// ConsumeChallenge atomically retires a nonce. On success the nonce can never
// be consumed again; on failure the returned error carries a ReplayError with
// the rejection reason. Failures never alter the ledger.
func (s *Service) ConsumeChallenge(ctx context.Context, nonce, domain string) (*StoredChallenge, error) {
	entry, err := s.storage.ConsumeChallenge(ctx, nonce, domain, s.clock.Now())
	if err != nil {
		var replay *ReplayError
		if errors.As(err, &replay) {
			logrus.WithFields(logrus.Fields{
				"reason": replay.Reason,
				"domain": domain,
			}).Info("challenge consumption rejected")
			return nil, err
		}
		return nil, util.LoggingErrorMsg(err, "consuming challenge")
	}
	return entry, nil
}

// StartReaper purges expired ledger entries on the configured interval until
// the context is cancelled or Stop is called. Reaping is an operational
// concern only: expired entries are already unconsumable.
func (s *Service) StartReaper(ctx context.Context) {
	ticker := s.clock.Ticker(s.config.ReapInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				purged, err := s.storage.PurgeExpired(ctx, s.clock.Now())
				if err != nil {
					logrus.WithError(err).Error("purging expired challenges")
					continue
				}
				if purged > 0 {
					logrus.WithField("purged", purged).Debug("reaped expired challenges")
				}
			}
		}
	}()
}

// Stop terminates the reaper goroutine.
func (s *Service) Stop() {
	close(s.done)
}

func generateNonce() (string, error) {
	nonceBytes := make([]byte, nonceByteLength)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(nonceBytes), nil
}
