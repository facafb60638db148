package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/concierge/internal/finance"
	"github.com/user/concierge/internal/interval"
)

type expenseView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	AmountVND   int64  `json:"amount_vnd"`
	Category    string `json:"category"`
	SpentAt     string `json:"spent_at"`
}

func viewExpenses(expenses []*finance.Expense, loc *time.Location) []expenseView {
	views := make([]expenseView, len(expenses))
	for i, e := range expenses {
		views[i] = expenseView{
			ID:          e.ID,
			Description: e.Description,
			AmountVND:   e.AmountVND,
			Category:    e.Category,
			SpentAt:     e.SpentAt.In(loc).Format(interval.DateTimeLayout),
		}
	}
	return views
}

// AddExpense records a spending entry in VND.
type AddExpense struct {
	store *finance.Store
	loc   *time.Location
	now   func() time.Time
}

func NewAddExpense(store *finance.Store, loc *time.Location) *AddExpense {
	return &AddExpense{store: store, loc: loc, now: time.Now}
}

func (o *AddExpense) Name() string { return "add_expense" }
func (o *AddExpense) Description() string {
	return "Record an expense in Vietnamese dong (VND)"
}
func (o *AddExpense) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"description": {"type": "string", "description": "What the money was spent on"},
			"amount_vnd": {"type": "integer", "description": "Amount in whole VND"},
			"category": {"type": "string", "enum": ["Food", "Transportation", "Miscellaneous"], "description": "Expense category"},
			"date": {"type": "string", "description": "Optional YYYY-MM-DD date, defaults to today"}
		},
		"required": ["description", "amount_vnd", "category"]
	}`)
}

func (o *AddExpense) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Description string `json:"description"`
		AmountVND   int64  `json:"amount_vnd"`
		Category    string `json:"category"`
		Date        string `json:"date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Description == "" {
		return "", fmt.Errorf("description is required")
	}

	spent := o.now().In(o.loc)
	if params.Date != "" {
		day, err := interval.ParseDate(params.Date, o.loc)
		if err != nil {
			return "", err
		}
		spent = day.Add(12 * time.Hour)
	}

	added, err := o.store.Add(ctx, &finance.Expense{
		Description: params.Description,
		AmountVND:   params.AmountVND,
		Category:    params.Category,
		SpentAt:     spent,
	})
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{
		"recorded": true,
		"expense":  viewExpenses([]*finance.Expense{added}, o.loc)[0],
	})
}

// ExpenseHistory lists expenses in a date range.
type ExpenseHistory struct {
	store *finance.Store
	loc   *time.Location
	now   func() time.Time
}

func NewExpenseHistory(store *finance.Store, loc *time.Location) *ExpenseHistory {
	return &ExpenseHistory{store: store, loc: loc, now: time.Now}
}

func (o *ExpenseHistory) Name() string { return "get_expense_history" }
func (o *ExpenseHistory) Description() string {
	return "List recorded expenses, optionally filtered by date range and category"
}
func (o *ExpenseHistory) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"from": {"type": "string", "description": "Start date YYYY-MM-DD, inclusive (default 30 days ago)"},
			"to": {"type": "string", "description": "End date YYYY-MM-DD, exclusive (default tomorrow)"},
			"category": {"type": "string", "description": "Optional category filter"}
		}
	}`)
}

func (o *ExpenseHistory) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	from, to, category, err := o.parseRange(args)
	if err != nil {
		return "", err
	}

	expenses, err := o.store.List(ctx, from, to, category)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"expenses": viewExpenses(expenses, o.loc)})
}

func (o *ExpenseHistory) parseRange(args json.RawMessage) (time.Time, time.Time, string, error) {
	var params struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Category string `json:"category"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("parse args: %w", err)
		}
	}

	now := o.now().In(o.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.loc)
	from := today.AddDate(0, 0, -30)
	to := today.AddDate(0, 0, 1)

	var err error
	if params.From != "" {
		if from, err = interval.ParseDate(params.From, o.loc); err != nil {
			return time.Time{}, time.Time{}, "", err
		}
	}
	if params.To != "" {
		if to, err = interval.ParseDate(params.To, o.loc); err != nil {
			return time.Time{}, time.Time{}, "", err
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, normalizeCategory(params.Category), nil
}

func normalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return ""
	}
	for _, valid := range finance.Categories {
		if strings.EqualFold(c, valid) {
			return valid
		}
	}
	return c
}

// TotalSpending sums expenses in a date range.
type TotalSpending struct {
	*ExpenseHistory
}

func NewTotalSpending(store *finance.Store, loc *time.Location) *TotalSpending {
	return &TotalSpending{ExpenseHistory: NewExpenseHistory(store, loc)}
}

func (o *TotalSpending) Name() string { return "get_total_spending" }
func (o *TotalSpending) Description() string {
	return "Total spending in VND, optionally filtered by date range and category"
}

func (o *TotalSpending) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	from, to, category, err := o.parseRange(args)
	if err != nil {
		return "", err
	}

	total, err := o.store.Total(ctx, from, to, category)
	if err != nil {
		return "", err
	}
	result := map[string]any{
		"total_vnd": total,
		"from":      from.Format(interval.DateLayout),
		"to":        to.AddDate(0, 0, -1).Format(interval.DateLayout),
	}
	if category != "" {
		result["category"] = category
	}
	return marshalResult(result)
}

// DeleteExpense removes a recorded expense.
type DeleteExpense struct{ store *finance.Store }

func NewDeleteExpense(store *finance.Store) *DeleteExpense { return &DeleteExpense{store: store} }

func (o *DeleteExpense) Name() string        { return "delete_expense" }
func (o *DeleteExpense) Description() string { return "Delete a recorded expense by id" }
func (o *DeleteExpense) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"expense_id": {"type": "string", "description": "Expense id"}
		},
		"required": ["expense_id"]
	}`)
}

func (o *DeleteExpense) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		ExpenseID string `json:"expense_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if err := o.store.Delete(ctx, params.ExpenseID); err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"deleted": true, "expense_id": params.ExpenseID})
}
