package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/pkg/server/framework"
	"github.com/spendgate/spendgate/pkg/service/expense"
	svcframework "github.com/spendgate/spendgate/pkg/service/framework"
)

type ExpenseRouter struct {
	service *expense.Service
}

func NewExpenseRouter(s svcframework.Service) (*ExpenseRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	service, ok := s.(*expense.Service)
	if !ok {
		return nil, fmt.Errorf("could not create expense router with service type: %s", s.Type())
	}
	return &ExpenseRouter{service: service}, nil
}

type CreateExpenseRequest struct {
	Description string `json:"description" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency,omitempty"`
}

type ApproveExpenseRequest struct {
	// Amount optionally overrides the expense's stored amount for the ceiling
	// check; zero means use the stored amount.
	Amount int64 `json:"amount,omitempty"`
}

// CeilingDeniedResponse surfaces the ceiling and requested amount on a denial,
// and nothing else.
type CeilingDeniedResponse struct {
	Error     string `json:"error"`
	Ceiling   int64  `json:"ceiling"`
	Requested int64  `json:"requested"`
}

type ListExpensesResponse struct {
	Expenses []expense.Expense `json:"expenses"`
}

// CreateExpense submits a pending expense on behalf of the token's subject.
func (er ExpenseRouter) CreateExpense(c *gin.Context) error {
	var request CreateExpenseRequest
	if err := framework.Decode(c.Request, &request); err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, "invalid create expense request", http.StatusBadRequest)
	}

	exp, err := er.service.CreateExpense(c, GetAuthToken(c), request.Description, request.Amount, request.Currency)
	if err != nil {
		return respondExpenseError(c, err)
	}
	framework.Respond(c, exp, http.StatusCreated)
	return nil
}

// GetExpense returns one expense by id.
func (er ExpenseRouter) GetExpense(c *gin.Context) error {
	id := framework.GetParam(c, "id")
	if id == nil {
		return framework.LoggingRespondErrMsg(c, "missing expense id", http.StatusBadRequest)
	}

	exp, err := er.service.GetExpense(c, GetAuthToken(c), *id)
	if err != nil {
		return respondExpenseError(c, err)
	}
	if exp == nil {
		return framework.LoggingRespondErrMsg(c, fmt.Sprintf("expense not found: %s", *id), http.StatusNotFound)
	}
	framework.Respond(c, exp, http.StatusOK)
	return nil
}

// ListExpenses returns all expenses in creation order.
func (er ExpenseRouter) ListExpenses(c *gin.Context) error {
	expenses, err := er.service.ListExpenses(c, GetAuthToken(c))
	if err != nil {
		return respondExpenseError(c, err)
	}
	framework.Respond(c, ListExpensesResponse{Expenses: expenses}, http.StatusOK)
	return nil
}

// ApproveExpense moves an expense to its approved terminal state, subject to
// the ceiling inside the caller's validated token.
func (er ExpenseRouter) ApproveExpense(c *gin.Context) error {
	id := framework.GetParam(c, "id")
	if id == nil {
		return framework.LoggingRespondErrMsg(c, "missing expense id", http.StatusBadRequest)
	}
	var request ApproveExpenseRequest
	if c.Request.ContentLength > 0 {
		if err := framework.Decode(c.Request, &request); err != nil {
			return framework.LoggingRespondErrWithMsg(c, err, "invalid approve expense request", http.StatusBadRequest)
		}
	}

	result, err := er.service.ApproveExpense(c, GetAuthToken(c), *id, request.Amount)
	if err != nil {
		return respondExpenseError(c, err)
	}
	framework.Respond(c, result, http.StatusOK)
	return nil
}

func respondExpenseError(c *gin.Context, err error) error {
	var unauthenticated *expense.UnauthenticatedError
	if errors.As(err, &unauthenticated) {
		return framework.LoggingRespondErrMsg(c, "request is not authenticated", http.StatusUnauthorized)
	}
	var insufficient *expense.InsufficientGrantError
	if errors.As(err, &insufficient) {
		return framework.LoggingRespondError(c, insufficient, http.StatusForbidden)
	}
	var exceeded *expense.CeilingExceededError
	if errors.As(err, &exceeded) {
		framework.Respond(c, CeilingDeniedResponse{
			Error:     exceeded.Error(),
			Ceiling:   exceeded.Ceiling,
			Requested: exceeded.Requested,
		}, http.StatusForbidden)
		return nil
	}
	return framework.LoggingRespondErrWithMsg(c, err, "expense operation failed", http.StatusInternalServerError)
}
