package usage

import domusage "github.com/kailas-cloud/jobrag/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Provider() string
	Usage() (daily, monthly domusage.Window)
}
