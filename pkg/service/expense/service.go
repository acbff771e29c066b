package expense

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/keyaccess"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/service/audit"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/service/framework"
	"github.com/spendgate/spendgate/pkg/service/token"
	"github.com/spendgate/spendgate/pkg/storage"
)

const component = "expense"

// Service is the resource server. Every operation re-validates the caller's
// token and checks the grant set; approval additionally enforces the ceiling as
// the last step before any state mutation.
type Service struct {
	config    config.ExpenseServiceConfig
	storage   *Storage
	validator *token.Validator
	audit     audit.Recorder
	clock     clock.Clock
}

func (s *Service) Type() framework.Type {
	return framework.Expense
}

func (s *Service) Status() framework.Status {
	if s.storage == nil || s.validator == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "missing storage or token validator",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func NewExpenseService(cfg config.ExpenseServiceConfig, db storage.ServiceStorage, validator *token.Validator, recorder audit.Recorder, clk clock.Clock) (*Service, error) {
	if validator == nil {
		return nil, util.LoggingNewError("expense service requires a token validator")
	}
	expenseStorage, err := NewExpenseStorage(db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the expense service")
	}
	return &Service{
		config:    cfg,
		storage:   expenseStorage,
		validator: validator,
		audit:     recorder,
		clock:     clk,
	}, nil
}

// authorize validates the token and checks the grant set for the action. The
// returned grant carries the ceiling for approve.
func (s *Service) authorize(ctx context.Context, tok keyaccess.JWT, action common.Action) (*token.ValidatedToken, common.Grant, error) {
	validated, err := s.validator.ValidateToken(ctx, tok)
	if err != nil {
		s.record(ctx, audit.DecisionDenied, "unauthenticated", "", err.Error())
		return nil, common.Grant{}, &UnauthenticatedError{Cause: err}
	}
	grant, ok := validated.Grants.Get(action)
	if !ok {
		s.record(ctx, audit.DecisionDenied, "no_grant", validated.Subject, string(action))
		return nil, common.Grant{}, &InsufficientGrantError{Action: action}
	}
	return validated, grant, nil
}

// CreateExpense records a pending expense on behalf of the token's subject.
func (s *Service) CreateExpense(ctx context.Context, tok keyaccess.JWT, description string, amount int64, currency string) (*Expense, error) {
	if amount <= 0 {
		return nil, util.LoggingNewError("expense amount must be positive")
	}
	validated, _, err := s.authorize(ctx, tok, common.ActionSubmit)
	if err != nil {
		return nil, err
	}

	exp := Expense{
		ID:          uuid.NewString(),
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Status:      StatusPending,
		Submitter:   validated.Subject,
		CreatedAt:   s.clock.Now(),
	}
	if err = s.storage.PutExpense(ctx, exp); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing expense")
	}
	s.record(ctx, audit.DecisionGranted, "submitted", validated.Subject, exp.ID)
	return &exp, nil
}

// GetExpense returns one expense, or nil when the id is unknown.
func (s *Service) GetExpense(ctx context.Context, tok keyaccess.JWT, id string) (*Expense, error) {
	if _, _, err := s.authorize(ctx, tok, common.ActionView); err != nil {
		return nil, err
	}
	return s.storage.GetExpense(ctx, id)
}

// ListExpenses returns all expenses in creation order.
func (s *Service) ListExpenses(ctx context.Context, tok keyaccess.JWT) ([]Expense, error) {
	if _, _, err := s.authorize(ctx, tok, common.ActionView); err != nil {
		return nil, err
	}
	return s.storage.ListExpenses(ctx)
}

// ApproveExpense moves a pending expense to its approved terminal state,
// provided the token carries an approve grant whose ceiling covers the
// requested amount. The ceiling comparison uses strict >: an amount equal to
// the ceiling is permitted, and only the ceiling inside the validated token is
// consulted. Denials leave the expense untouched.
func (s *Service) ApproveExpense(ctx context.Context, tok keyaccess.JWT, id string, requestedAmount int64) (*ApprovalResult, error) {
	validated, grant, err := s.authorize(ctx, tok, common.ActionApprove)
	if err != nil {
		return nil, err
	}

	exp, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "loading expense")
	}
	if exp == nil {
		return nil, util.LoggingNewErrorf("expense not found: %s", id)
	}
	if exp.Status == StatusApproved {
		return nil, util.LoggingNewErrorf("expense<%s> is already approved", id)
	}
	if requestedAmount <= 0 {
		requestedAmount = exp.Amount
	}

	if requestedAmount > grant.Ceiling {
		s.record(ctx, audit.DecisionDenied, "ceiling_exceeded", validated.Subject,
			fmt.Sprintf("ceiling=%d requested=%d expense=%s", grant.Ceiling, requestedAmount, id))
		return nil, &CeilingExceededError{Ceiling: grant.Ceiling, Requested: requestedAmount}
	}

	now := s.clock.Now()
	exp.Status = StatusApproved
	exp.Approver = validated.Subject
	exp.ApprovedAt = &now
	if err = s.storage.PutExpense(ctx, *exp); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing approved expense")
	}

	s.record(ctx, audit.DecisionGranted, "approved", validated.Subject,
		fmt.Sprintf("ceiling=%d requested=%d expense=%s", grant.Ceiling, requestedAmount, id))
	logrus.WithFields(logrus.Fields{
		"expense":   id,
		"approver":  validated.Subject,
		"ceiling":   grant.Ceiling,
		"requested": requestedAmount,
	}).Info("expense approved")

	return &ApprovalResult{
		Approved:  true,
		Ceiling:   grant.Ceiling,
		Requested: requestedAmount,
		Approver:  validated.Subject,
	}, nil
}

func (s *Service) record(ctx context.Context, decision audit.Decision, reason, subject, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, component, decision, reason, subject, detail)
}
