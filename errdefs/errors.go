// Package errdefs defines the error taxonomy shared by every encoder.
//
// Each error kind is a struct carrying context and matches a sentinel via
// errors.Is, so callers can branch on the kind without type assertions:
//
//	if errors.Is(err, errdefs.ErrUnknownSymbol) {
//	    // fail closed
//	}
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches invalid parameters and unsupported setups.
	ErrConfiguration = errors.New("configuration error")

	// ErrFormat matches malformed codebook files, VCF lines and vector envelopes.
	ErrFormat = errors.New("format error")

	// ErrEncoding matches inputs that cannot be encoded.
	ErrEncoding = errors.New("encoding error")

	// ErrUnknownSymbol matches lookups of alleles, genes, drugs or loci
	// absent from the domain tables.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrPrivacyBudget matches invalid privacy parameters and budget exhaustion.
	ErrPrivacyBudget = errors.New("privacy budget error")

	// ErrBudgetExhausted is wrapped by PrivacyBudgetError when a query
	// would exceed the remaining budget.
	ErrBudgetExhausted = errors.New("privacy budget exhausted")
)

// ConfigurationError reports an invalid option value.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

// Configuration returns a ConfigurationError for field.
func Configuration(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// FormatError reports malformed external input. Line is 1-based and zero
// when the error is not tied to a line.
type FormatError struct {
	Source string
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	switch {
	case e.Source != "" && e.Line > 0:
		return fmt.Sprintf("format error: %s:%d: %s", e.Source, e.Line, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("format error: line %d: %s", e.Line, e.Reason)
	case e.Source != "":
		return fmt.Sprintf("format error: %s: %s", e.Source, e.Reason)
	default:
		return fmt.Sprintf("format error: %s", e.Reason)
	}
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// EncodingError reports an input that violates an encoder's constraints.
type EncodingError struct {
	Reason string
}

// Encoding returns an EncodingError with a formatted reason.
func Encoding(format string, args ...any) *EncodingError {
	return &EncodingError{Reason: fmt.Sprintf(format, args...)}
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s", e.Reason)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// UnknownSymbolError reports a symbol missing from a domain table.
// Kind names the table ("gene", "allele", "drug", "locus", ...).
type UnknownSymbolError struct {
	Kind   string
	Symbol string
	Scope  string
}

// UnknownSymbol returns an UnknownSymbolError.
func UnknownSymbol(kind, symbol string) *UnknownSymbolError {
	return &UnknownSymbolError{Kind: kind, Symbol: symbol}
}

func (e *UnknownSymbolError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("unknown %s %q for %s", e.Kind, e.Symbol, e.Scope)
	}
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Symbol)
}

func (e *UnknownSymbolError) Is(target error) bool { return target == ErrUnknownSymbol }

// PrivacyBudgetError reports an invalid epsilon/delta or an exhausted budget.
// It also matches ErrConfiguration since it rejects caller-supplied parameters.
type PrivacyBudgetError struct {
	Param  string
	Value  float64
	Reason string
	Err    error
}

func (e *PrivacyBudgetError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("privacy budget error: %s", e.Reason)
	}
	return fmt.Sprintf("privacy budget error: %s=%g: %s", e.Param, e.Value, e.Reason)
}

func (e *PrivacyBudgetError) Unwrap() error { return e.Err }

func (e *PrivacyBudgetError) Is(target error) bool {
	return target == ErrPrivacyBudget || target == ErrConfiguration
}
