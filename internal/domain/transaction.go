package domain

import "errors"

// ErrNoTransactions is returned when a request carries no usable transactions.
// It maps to a 400 at the API boundary and is never retried.
var ErrNoTransactions = errors.New("no transactions in request")

// Transaction is the canonical shape every analysis stage consumes.
// Amounts are signed: negative is an expense, positive is income.
// Values are immutable once produced by the normalizer.
type Transaction struct {
	Date   string  `json:"date"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// AccountContext carries optional caller-supplied account details that get
// rendered into the prompt alongside the transactions.
type AccountContext struct {
	AccountID string  `json:"account_id,omitempty"`
	Balance   float64 `json:"balance,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}
