package categorize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dvloznov/insight-agent/internal/domain"
	"github.com/dvloznov/insight-agent/internal/screen"
)

// Totals sums absolute expense and income amounts across the set.
func Totals(txns []domain.Transaction) (expenses, income float64) {
	for _, t := range txns {
		if t.Amount < 0 {
			expenses += -t.Amount
		} else {
			income += t.Amount
		}
	}
	return round2(expenses), round2(income)
}

// expenseBuckets aggregates expenses per category, largest first.
func expenseBuckets(txns []domain.Transaction) []domain.BudgetBucket {
	totals := map[string]*domain.BudgetBucket{}
	for _, t := range txns {
		if t.Amount >= 0 {
			continue
		}
		cat := Category(t.Label)
		if IsTransfer(t.Label) {
			cat = "Transfers"
		}
		b, ok := totals[cat]
		if !ok {
			b = &domain.BudgetBucket{Name: cat}
			totals[cat] = b
		}
		b.Total = round2(b.Total + -t.Amount)
		b.Count++
	}

	buckets := make([]domain.BudgetBucket, 0, len(totals))
	for _, b := range totals {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Total != buckets[j].Total {
			return buckets[i].Total > buckets[j].Total
		}
		return buckets[i].Name < buckets[j].Name
	})
	if len(buckets) > 5 {
		buckets = buckets[:5]
	}
	return buckets
}

// daysObserved counts distinct calendar days, never below one.
func daysObserved(txns []domain.Transaction) int {
	days := map[string]struct{}{}
	for _, t := range txns {
		if len(t.Date) >= 10 {
			days[t.Date[:10]] = struct{}{}
		}
	}
	if len(days) == 0 {
		return 1
	}
	return len(days)
}

// CoachFallback builds a schema-valid budget-coach result from local totals.
func CoachFallback(txns []domain.Transaction) domain.CoachResult {
	expenses, income := Totals(txns)
	buckets := expenseBuckets(txns)
	if buckets == nil {
		buckets = []domain.BudgetBucket{}
	}
	return domain.CoachResult{
		Summary: fmt.Sprintf(
			"Computed locally from %d transactions: %.2f spent against %.2f income across the largest categories shown.",
			len(txns), expenses, income),
		BudgetBuckets: buckets,
		Tips: []string{
			"Set category budgets based on the largest buckets.",
			"Automate savings transfers right after income posts.",
			"Track recurring subscriptions and cancel those unused.",
		},
	}
}

// SpendingFallback builds a schema-valid spending analysis from local totals.
// Unusual transactions come from the statistical pre-screen; when the screen
// flags nothing the list stays empty rather than echoing the full set.
func SpendingFallback(txns []domain.Transaction) domain.SpendingResult {
	expenses, income := Totals(txns)
	days := daysObserved(txns)
	buckets := expenseBuckets(txns)
	if buckets == nil {
		buckets = []domain.BudgetBucket{}
	}

	unusual := outliersOnly(txns)
	if unusual == nil {
		unusual = []domain.Transaction{}
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, fmt.Sprintf("%s (%.2f)", b.Name, b.Total))
	}

	return domain.SpendingResult{
		Summary: fmt.Sprintf(
			"Observed %d days of activity: expenses=%.2f, income=%.2f, avg per day %.2f. Top categories: %s.",
			days, expenses, income, expenses/float64(days), strings.Join(names, ", ")),
		TopCategories:       buckets,
		UnusualTransactions: unusual,
	}
}

// FraudFallback builds a schema-valid fraud screen from the outlier filter,
// scoring each flagged transaction by its deviation from the mean.
func FraudFallback(txns []domain.Transaction) domain.FraudResult {
	flagged := outliersOnly(txns)
	mean, stddev := screen.Stats(txns)

	findings := make([]domain.FraudFinding, 0, len(flagged))
	maxRisk := 0.0
	for _, t := range flagged {
		z := (math.Abs(t.Amount) - mean) / math.Max(stddev, 1e-9)
		risk := math.Min(1, z/6)
		if risk > maxRisk {
			maxRisk = risk
		}
		findings = append(findings, domain.FraudFinding{
			Transaction:    t,
			RiskScore:      round2(risk),
			Reason:         fmt.Sprintf("amount deviates %.1f standard deviations from the account mean", z),
			Recommendation: "Review this transaction with the account holder.",
		})
	}

	overall := "low"
	switch {
	case maxRisk >= 0.8:
		overall = "high"
	case len(findings) > 0:
		overall = "elevated"
	}

	summary := fmt.Sprintf("Statistical screen flagged %d of %d transactions.", len(findings), len(txns))
	if len(findings) == 0 {
		summary = fmt.Sprintf("No statistical outliers among %d transactions.", len(txns))
	}

	return domain.FraudResult{
		Findings:    findings,
		OverallRisk: overall,
		Summary:     summary,
	}
}

// outliersOnly returns only genuine outliers, unlike screen.Outliers which
// falls back to the full set for prompt-shrinking purposes.
func outliersOnly(txns []domain.Transaction) []domain.Transaction {
	flagged := screen.Outliers(txns, true)
	if len(flagged) == len(txns) {
		return nil
	}
	return flagged
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
