package expense

import (
	"context"
	"sort"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/pkg/storage"
)

const namespace = "expense"

// Storage persists expenses in the service storage.
type Storage struct {
	db storage.ServiceStorage
}

func NewExpenseStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("storage cannot be nil")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) PutExpense(ctx context.Context, exp Expense) error {
	expenseBytes, err := json.Marshal(exp)
	if err != nil {
		return errors.Wrapf(err, "marshaling expense<%s>", exp.ID)
	}
	return s.db.Write(ctx, namespace, exp.ID, expenseBytes)
}

// GetExpense returns the expense, or nil when the id is unknown.
func (s *Storage) GetExpense(ctx context.Context, id string) (*Expense, error) {
	expenseBytes, err := s.db.Read(ctx, namespace, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading expense<%s>", id)
	}
	if len(expenseBytes) == 0 {
		return nil, nil
	}
	var exp Expense
	if err = json.Unmarshal(expenseBytes, &exp); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling expense<%s>", id)
	}
	return &exp, nil
}

func (s *Storage) ListExpenses(ctx context.Context) ([]Expense, error) {
	all, err := s.db.ReadAll(ctx, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "reading expenses")
	}
	expenses := make([]Expense, 0, len(all))
	for _, value := range all {
		var exp Expense
		if err = json.Unmarshal(value, &exp); err != nil {
			return nil, errors.Wrap(err, "unmarshaling expense")
		}
		expenses = append(expenses, exp)
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].CreatedAt.Before(expenses[j].CreatedAt) })
	return expenses, nil
}
