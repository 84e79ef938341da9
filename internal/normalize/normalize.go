// Package normalize maps heterogeneous upstream transaction records into the
// canonical domain shape consumed by every downstream analysis stage.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/dvloznov/insight-agent/internal/domain"
)

// RawRecord is the union of field names the upstream bank services emit.
// The ledger-style services use timestamp/fromAccountNum/toAccountNum; other
// callers post date/label/amount directly.
type RawRecord struct {
	TransactionID  json.Number `json:"transactionId,omitempty"`
	Date           string      `json:"date,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	Label          string      `json:"label,omitempty"`
	Amount         json.Number `json:"amount,omitempty"`
	FromAccountNum string      `json:"fromAccountNum,omitempty"`
	ToAccountNum   string      `json:"toAccountNum,omitempty"`
}

// Records converts raw upstream records into canonical transactions.
// A record is inbound when its destination account equals accountID; inbound
// amounts stay positive, outbound amounts are negated. Labels are synthesized
// from the counterpart account when the record has no free-text description.
func Records(records []RawRecord, accountID string) []domain.Transaction {
	txns := make([]domain.Transaction, 0, len(records))
	for _, r := range records {
		amount := numberOrZero(r.Amount)
		inbound := r.ToAccountNum != "" && r.ToAccountNum == accountID

		if r.FromAccountNum != "" || r.ToAccountNum != "" {
			if amount < 0 {
				amount = -amount
			}
			if !inbound {
				amount = -amount
			}
		}

		label := r.Label
		if label == "" {
			if inbound {
				label = "Inbound from " + r.FromAccountNum
			} else {
				label = "Outbound to " + r.ToAccountNum
			}
		}

		date := r.Date
		if date == "" {
			date = r.Timestamp
		}

		txns = append(txns, domain.Transaction{
			Date:   Timestamp(date),
			Label:  label,
			Amount: amount,
		})
	}
	return txns
}

// Timestamp rewrites the upstream UTC-offset suffix into the Z-suffixed ISO
// form the prompts and result schemas use.
func Timestamp(s string) string {
	if strings.HasSuffix(s, ".000+00:00") {
		return strings.TrimSuffix(s, ".000+00:00") + "Z"
	}
	if strings.HasSuffix(s, "+00:00") {
		return strings.TrimSuffix(s, "+00:00") + "Z"
	}
	return s
}

// numberOrZero parses a numeric field, defaulting to zero on malformed input.
func numberOrZero(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}
