package validate

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/schema"
)

// Fatal input errors. Each is the sentinel of the package that detects it,
// so errors.Is works against either name.
var (
	ErrSchemaNotFound  = schema.ErrNotFound
	ErrSchemaMalformed = schema.ErrMalformed
	ErrInputNotFound   = dataset.ErrInputNotFound
	ErrInputMalformed  = dataset.ErrMalformed
)

// ErrValidationFailed is raised only when the caller asks for failures to be
// errors (the --raise-on-fail mode). Findings are otherwise plain data.
var ErrValidationFailed = errors.New("validation failed")

// InternalError marks a failure of the validator itself, as opposed to a
// problem with the data or the inputs.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Class groups errors by who has to act on them.
type Class int

const (
	// ClassNone is a nil error.
	ClassNone Class = iota
	// ClassInput covers missing or unreadable schema and input files.
	ClassInput
	// ClassValidationFailed is an explicit ErrValidationFailed.
	ClassValidationFailed
	// ClassInternal is everything else.
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassInput:
		return "input"
	case ClassValidationFailed:
		return "validation_failed"
	}
	return "internal"
}

// Classify reports which class err belongs to.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrValidationFailed):
		return ClassValidationFailed
	case isNotFound(err), errors.Is(err, ErrSchemaMalformed), errors.Is(err, ErrInputMalformed):
		return ClassInput
	}
	return ClassInternal
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrSchemaNotFound) || errors.Is(err, ErrInputNotFound)
}

// Process exit codes of the validate command.
const (
	ExitOK               = 0
	ExitValidationFailed = 2
	ExitNotFound         = 3
	ExitRaised           = 4
	ExitInternal         = 5

	// ExitUsage reports a command-line mistake (sysexits EX_USAGE). ExitCode
	// never returns it; commands use it before a run starts.
	ExitUsage = 64
)

// ExitCode maps the result of a run to a process exit code. A missing schema
// or input file exits 3. A schema or CSV that exists but cannot be parsed
// exits 5 together with every other unexpected failure.
func ExitCode(err error, passed, raiseOnFail bool) int {
	if err != nil {
		switch {
		case errors.Is(err, ErrValidationFailed):
			return ExitRaised
		case isNotFound(err):
			return ExitNotFound
		}
		return ExitInternal
	}
	if passed {
		return ExitOK
	}
	if raiseOnFail {
		return ExitRaised
	}
	return ExitValidationFailed
}
