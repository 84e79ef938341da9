package prompts

// Built-in templates, used whenever no external source provides a template of
// the same name. Placeholders use {name} form and render empty when the
// caller supplies no value.
var defaults = map[string]string{
	"budget_coach": `You are a personal financial coach. Analyze the transactions and provide:
1) A concise summary (2-4 sentences).
2) 3 practical budgeting tips tailored to the data.
3) The top spending categories as budget_buckets with name, total and count.
Return strict JSON with keys: summary, budget_buckets, tips. No markdown, no prose.

Account context:
{account_context}

Transactions (JSON list):
{transactions}
`,

	"spending_analyze": `You are a concise personal financial analyst. Review the transactions and
summarize spending patterns, the top spending categories (name, total, count)
and any transactions that look unusual for this account.
Return strict JSON with keys: summary, top_categories, unusual_transactions.
No markdown, no prose.

Account context:
{account_context}

Transactions (JSON list):
{transactions}
`,

	"fraud_detect": `You are a fraud analyst for a retail bank. The transactions below were
pre-screened for statistical anomalies. For each suspicious transaction,
report a finding with the transaction, a risk_score between 0 and 1, a short
reason, and a recommendation. Also report overall_risk (low, elevated or
high) and a summary.
Return strict JSON with keys: findings, overall_risk, summary. No markdown,
no prose.

Account context:
{account_context}

Transactions (JSON list):
{transactions}
`,

	"monitor_advice": `Analyze the following bank transaction and provide a one-sentence analysis
of the spending category. Return plain text only.

Transaction:
{transaction}

Recent transactions on the same account, for context:
{window}
`,
}

// Default returns the built-in template for name, or an empty string.
func Default(name string) string {
	return defaults[name]
}
