package params

import (
	"math"

	"fundamental_valuation/pkg/core/valuation"
)

// ValueFunc computes a blended fair value per share for one candidate
// parameter set. The engine supplies one bound to a fixed snapshot and
// policy, which keeps the objective itself free of engine types.
type ValueFunc func(ParameterSet) (float64, error)

// Evaluate scores one candidate parameter set: the relative absolute error
// between the fair value the candidate produces and the observed market
// price. Candidates that fail the reasonableness predicate are rejected
// before any valuation is attempted; an optimizer must treat the rejection
// as an infeasible point, not a high-error one.
func Evaluate(ps ParameterSet, f Features, marketPrice float64, value ValueFunc) (float64, error) {
	if marketPrice <= 0 {
		return 0, &valuation.DomainError{Op: "objective", Reason: "market price not positive"}
	}
	if violations := Validate(ps, f); len(violations) > 0 {
		return 0, &valuation.ParameterRejectedError{Symbol: ps.Symbol, Violations: violations}
	}
	fair, err := value(ps)
	if err != nil {
		return 0, err
	}
	return math.Abs(fair-marketPrice) / marketPrice, nil
}
