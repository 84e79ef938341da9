// Package categorize assigns merchant categories to transaction labels with a
// keyword table, and builds the deterministic heuristic results used whenever
// the model path is unavailable or unparseable.
package categorize

import "strings"

// rules map label keywords to categories, checked in order with first match
// winning. Shopping precedes Groceries so "walmart" does not hit "mart".
var rules = []struct {
	category string
	keywords []string
}{
	{"Shopping", []string{"amazon", "target", "walmart"}},
	{"Groceries", []string{"grocery", "market", "supermarket", "mart", "whole foods", "trader"}},
	{"Transport", []string{"uber", "lyft", "ride", "taxi", "transit"}},
	{"Housing", []string{"rent", "mortgage"}},
	{"Utilities", []string{"utilit", "electric", "power", "water bill"}},
	{"Subscriptions", []string{"netflix", "spotify", "subscription", "prime"}},
	{"Dining", []string{"restaurant", "dining", "cafe", "food"}},
	{"Income", []string{"salary", "paycheck", "payroll", "income", "deposit"}},
}

// Category returns the merchant category for a transaction label.
func Category(label string) string {
	l := strings.ToLower(label)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(l, kw) {
				return r.category
			}
		}
	}
	return "Misc"
}

// IsTransfer reports whether the label marks an account-to-account transfer
// synthesized by the normalizer.
func IsTransfer(label string) bool {
	return strings.HasPrefix(label, "Inbound from ") || strings.HasPrefix(label, "Outbound to ")
}
