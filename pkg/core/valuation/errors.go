// Package valuation implements the two valuation legs of the engine: the
// discounted-cash-flow model (with its cost-of-capital estimator) and the
// sector-comparables model.
package valuation

import (
	"fmt"
	"strings"
)

// Error kinds used in batch failure entries.
const (
	KindInputValidation = "input_validation"
	KindDomain          = "domain"
	KindDataUnavailable = "data_unavailable"
	KindParamRejected   = "parameter_rejected"
)

// InputValidationError is fatal for the affected company: the snapshot itself
// is unusable and no value may be computed from it.
type InputValidationError struct {
	Symbol string
	Err    error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: %v", e.Symbol, e.Err)
}

func (e *InputValidationError) Unwrap() error { return e.Err }

// Kind returns the failure-entry kind for this error.
func (e *InputValidationError) Kind() string { return KindInputValidation }

// DomainError is fatal for the affected company: its inputs were valid but
// the model has no defined answer for them (e.g. a non-convergent terminal
// value).
type DomainError struct {
	Op     string // e.g. "terminal_value"
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error in %s: %s", e.Op, e.Reason)
}

// Kind returns the failure-entry kind for this error.
func (e *DomainError) Kind() string { return KindDomain }

// DataUnavailableError is recoverable: one leg of the valuation degrades but
// the company is still valued.
type DataUnavailableError struct {
	What   string // e.g. "comparables"
	Reason string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.What, e.Reason)
}

// Kind returns the failure-entry kind for this error.
func (e *DataUnavailableError) Kind() string { return KindDataUnavailable }

// ParameterRejectedError is recoverable: the calibrated parameter set failed
// the financial-reasonableness predicate and global defaults were used
// instead. Violations carries one entry per violated rule.
type ParameterRejectedError struct {
	Symbol     string
	Violations []string
}

func (e *ParameterRejectedError) Error() string {
	return fmt.Sprintf("parameter set rejected for %s: %s", e.Symbol, strings.Join(e.Violations, "; "))
}

// Kind returns the failure-entry kind for this error.
func (e *ParameterRejectedError) Kind() string { return KindParamRejected }
