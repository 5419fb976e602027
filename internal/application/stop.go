package application

import "github.com/vibeheal/vibeheal/internal/domain"

// DefaultStopCondition ends the loop when an iteration observed exactly as
// many issues as the one before it, or when the iteration ceiling is reached.
// Convergence is decided by the loop itself before fixing starts.
func DefaultStopCondition(st domain.CleanupIterationState) domain.StopReason {
	if st.Iteration > 1 && st.Previous >= 0 && st.Observed == st.Previous {
		return domain.StopNoProgress
	}
	if st.Iteration >= st.MaxIterations {
		return domain.StopMaxIterations
	}
	return ""
}
