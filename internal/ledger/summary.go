package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Summary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
	Count   int
}

func Summarize(txs []Transaction) Summary {
	s := Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txs {
		switch tx.Kind {
		case KindIncome:
			s.Income = s.Income.Add(tx.Amount)
		case KindExpense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
		s.Count++
	}
	s.Net = s.Income.Sub(s.Expense)
	return s
}

type SortBy string

const (
	SortByTime   SortBy = "time"
	SortByAmount SortBy = "amount"
)

// ViewOptions narrows and orders a ledger's transactions for display.
// An empty Kind means all kinds.
type ViewOptions struct {
	Kind   Kind
	Search string
	Sort   SortBy
}

func View(txs []Transaction, opts ViewOptions) []Transaction {
	query := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if opts.Kind != "" && tx.Kind != opts.Kind {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(tx.ClientName), query) {
			continue
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if opts.Sort == SortByAmount {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}
