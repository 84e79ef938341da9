package domain

// AnalysisKind names one of the supported analysis pipelines. It selects the
// prompt template, the response schema and the heuristic fallback.
type AnalysisKind string

const (
	KindCoach    AnalysisKind = "budget_coach"
	KindSpending AnalysisKind = "spending_analyze"
	KindFraud    AnalysisKind = "fraud_detect"
)

// BudgetBucket is one spending category with its aggregate total.
type BudgetBucket struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// CoachResult is the budget-coach response schema. The model-produced and the
// heuristic-fallback variants are indistinguishable to callers.
type CoachResult struct {
	Summary       string         `json:"summary"`
	BudgetBuckets []BudgetBucket `json:"budget_buckets"`
	Tips          []string       `json:"tips"`
}

// SpendingResult is the spending-analysis response schema.
type SpendingResult struct {
	Summary             string         `json:"summary"`
	TopCategories       []BudgetBucket `json:"top_categories"`
	UnusualTransactions []Transaction  `json:"unusual_transactions"`
}

// FraudFinding flags a single suspicious transaction.
type FraudFinding struct {
	Transaction    Transaction `json:"transaction"`
	RiskScore      float64     `json:"risk_score"`
	Reason         string      `json:"reason"`
	Recommendation string      `json:"recommendation"`
}

// FraudResult is the fraud-screen response schema. OverallRisk is one of
// "low", "elevated" or "high".
type FraudResult struct {
	Findings    []FraudFinding `json:"findings"`
	OverallRisk string         `json:"overall_risk"`
	Summary     string         `json:"summary"`
}
