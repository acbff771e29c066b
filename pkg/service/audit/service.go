// Package audit records every trust-boundary decision to an append-only trail.
// Entries are written before the corresponding response leaves the process.
package audit

import (
	"context"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/storage"
)

const namespace = "audit"

// Decision classifies an audit entry.
type Decision string

const (
	DecisionGranted Decision = "granted"
	DecisionDenied  Decision = "denied"
)

// Entry is one recorded decision. Reasons are the same safe strings surfaced to
// callers; key material and nonce values never appear here.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Decision  Decision  `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Recorder is the write side of the trail, accepted by the services that make
// trust-boundary decisions.
type Recorder interface {
	Record(ctx context.Context, component string, decision Decision, reason, subject, detail string)
}

// Service is the storage-backed audit trail.
type Service struct {
	db    storage.ServiceStorage
	clock clock.Clock
}

func (s *Service) Type() framework.Type {
	return framework.Audit
}

func (s *Service) Status() framework.Status {
	if s.db == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "no storage configured",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewAuditService(db storage.ServiceStorage, clk clock.Clock) (*Service, error) {
	if db == nil {
		return nil, util.LoggingNewError("audit service requires storage")
	}
	return &Service{db: db, clock: clk}, nil
}

// Record appends a decision to the trail. Failures are logged, never propagated:
// an audit write problem must not change an authorization outcome that was
// already made, and the denial itself still reaches the caller.
func (s *Service) Record(ctx context.Context, component string, decision Decision, reason, subject, detail string) {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: s.clock.Now(),
		Component: component,
		Decision:  decision,
		Reason:    reason,
		Subject:   subject,
		Detail:    detail,
	}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).Error("marshaling audit entry")
		return
	}
	if err = s.db.Write(ctx, namespace, entry.Timestamp.UTC().Format(time.RFC3339Nano)+"-"+entry.ID, entryBytes); err != nil {
		logrus.WithError(err).Error("writing audit entry")
	}
}

// List returns all recorded entries in timestamp order.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	all, err := s.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "reading audit trail")
	}
	entries := make([]Entry, 0, len(all))
	for _, value := range all {
		var entry Entry
		if err = json.Unmarshal(value, &entry); err != nil {
			return nil, util.LoggingErrorMsg(err, "unmarshaling audit entry")
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}
