package entities

// DenyReason explains why the budget guard refused a request.
type DenyReason string

const (
	DenyNone          DenyReason = ""
	DenyGlobalLimit   DenyReason = "global_daily_limit"
	DenyIdentityLimit DenyReason = "identity_daily_limit"
)

// BudgetRemaining is the quota left for today.
type BudgetRemaining struct {
	Global   int64 `json:"global"`
	Identity int64 `json:"identity"`
}

// BudgetDecision is the result of an admission check.
type BudgetDecision struct {
	Allowed   bool            `json:"allowed"`
	Reason    DenyReason      `json:"reason,omitempty"`
	Remaining BudgetRemaining `json:"remaining"`
}
