package hdc

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/luminous-dynamics/hdc/errdefs"
)

var (
	// ErrNotFound is returned when an input file, blob or codebook does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned for invalid options or tables.
	ErrConfiguration = errdefs.ErrConfiguration

	// ErrFormat is returned for malformed input documents.
	ErrFormat = errdefs.ErrFormat

	// ErrEncoding is returned when an input cannot be encoded.
	ErrEncoding = errdefs.ErrEncoding

	// ErrUnknownSymbol is returned for genes, alleles or drugs that are not
	// in the configured tables.
	ErrUnknownSymbol = errdefs.ErrUnknownSymbol

	// ErrPrivacyBudget is returned for invalid privacy parameters.
	ErrPrivacyBudget = errdefs.ErrPrivacyBudget

	// ErrBudgetExhausted is returned when a release would exceed the
	// configured privacy budget.
	ErrBudgetExhausted = errdefs.ErrBudgetExhausted
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification. Local files and blob stores both report
	// fs.ErrNotExist.
	if errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
