package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/insight-agent/internal/domain"
)

func TestTotals(t *testing.T) {
	expenses, income := Totals([]domain.Transaction{
		{Date: "2024-01-01", Label: "Fresh Mart", Amount: -42.75},
		{Date: "2024-01-02", Label: "ACME Payroll", Amount: 1500},
		{Date: "2024-01-03", Label: "Corner Cafe", Amount: -10.25},
	})

	assert.Equal(t, 53.0, expenses)
	assert.Equal(t, 1500.0, income)
}

func TestSpendingFallbackSingleExpense(t *testing.T) {
	result := SpendingFallback([]domain.Transaction{
		{Date: "2024-01-01", Label: "Fresh Mart", Amount: -42.75},
	})

	assert.Contains(t, result.Summary, "expenses=42.75")
	assert.Contains(t, result.Summary, "income=0.00")
	require.Len(t, result.TopCategories, 1)
	assert.Equal(t, "Groceries", result.TopCategories[0].Name)
	assert.Equal(t, 42.75, result.TopCategories[0].Total)
	assert.NotNil(t, result.UnusualTransactions)
}

func TestCoachFallbackBuckets(t *testing.T) {
	result := CoachFallback([]domain.Transaction{
		{Date: "2024-01-01", Label: "Monthly Rent", Amount: -1200},
		{Date: "2024-01-02", Label: "Fresh Mart", Amount: -80},
		{Date: "2024-01-02", Label: "Fresh Mart", Amount: -20},
		{Date: "2024-01-05", Label: "ACME Payroll", Amount: 3000},
	})

	require.Len(t, result.BudgetBuckets, 2)
	assert.Equal(t, "Housing", result.BudgetBuckets[0].Name)
	assert.Equal(t, 1200.0, result.BudgetBuckets[0].Total)
	assert.Equal(t, "Groceries", result.BudgetBuckets[1].Name)
	assert.Equal(t, 100.0, result.BudgetBuckets[1].Total)
	assert.Equal(t, 2, result.BudgetBuckets[1].Count)
	assert.Len(t, result.Tips, 3)
	assert.NotEmpty(t, result.Summary)
}

func TestFraudFallbackFlagsOutlier(t *testing.T) {
	txns := make([]domain.Transaction, 0, 13)
	for i := 0; i < 12; i++ {
		txns = append(txns, domain.Transaction{Date: "2024-01-01", Label: "Corner Cafe", Amount: -10})
	}
	txns = append(txns, domain.Transaction{Date: "2024-01-02", Label: "Wire Transfer", Amount: -9000})

	result := FraudFallback(txns)

	require.Len(t, result.Findings, 1)
	assert.Equal(t, -9000.0, result.Findings[0].Transaction.Amount)
	assert.Greater(t, result.Findings[0].RiskScore, 0.0)
	assert.LessOrEqual(t, result.Findings[0].RiskScore, 1.0)
	assert.Contains(t, []string{"elevated", "high"}, result.OverallRisk)
}

func TestFraudFallbackQuietSet(t *testing.T) {
	result := FraudFallback([]domain.Transaction{
		{Date: "2024-01-01", Label: "Corner Cafe", Amount: -10},
		{Date: "2024-01-02", Label: "Corner Cafe", Amount: -11},
	})

	assert.Empty(t, result.Findings)
	assert.Equal(t, "low", result.OverallRisk)
	assert.NotEmpty(t, result.Summary)
}
