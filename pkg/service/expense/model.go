package expense

import (
	"fmt"
	"time"

	"github.com/spendgate/spendgate/pkg/service/common"
)

// Status is an expense's lifecycle state. Approved is terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Expense is the protected resource the ceiling guards.
type Expense struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency,omitempty"`
	Status      Status     `json:"status"`
	Submitter   string     `json:"submitter"`
	Approver    string     `json:"approver,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
}

// ApprovalResult reports a successful approval: the enforced ceiling, the
// requested amount, and who approved.
type ApprovalResult struct {
	Approved  bool   `json:"approved"`
	Ceiling   int64  `json:"ceiling"`
	Requested int64  `json:"requested"`
	Approver  string `json:"approver"`
}

// UnauthenticatedError rejects a request whose token is missing or invalid.
type UnauthenticatedError struct {
	Cause error
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("request is not authenticated: %v", e.Cause)
}

func (e *UnauthenticatedError) Unwrap() error { return e.Cause }

// InsufficientGrantError rejects an action the token's grant set does not cover.
type InsufficientGrantError struct {
	Action common.Action
}

func (e *InsufficientGrantError) Error() string {
	return fmt.Sprintf("grant set does not cover action: %s", e.Action)
}

// CeilingExceededError rejects an approval above the token's ceiling. The
// ceiling and requested amount are surfaced deliberately; nothing else is.
type CeilingExceededError struct {
	Ceiling   int64
	Requested int64
}

func (e *CeilingExceededError) Error() string {
	return fmt.Sprintf("requested amount %d exceeds approval ceiling %d", e.Requested, e.Ceiling)
}
