// Package condition evaluates alert condition expressions against a
// window of signal-set records. Expressions are expr-lang programs
// extended with a small statement layer: statements are separated by
// newlines or semicolons, `name = expr` defines a variable,
// `name(args) = expr` defines a single-line function, and only the last
// statement's value is the result of the condition.
package condition

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/stats"
)

// DefaultWindowSize is the number of latest records fetched into the
// evaluation scope when no size is configured.
const DefaultWindowSize = 10

// RecordSource yields the newest records of a signal set, newest first,
// including the synthetic id field.
type RecordSource interface {
	LatestRecords(ctx context.Context, sigSet string, limit int) ([]models.Record, error)
}

// EvalError is a recoverable condition-evaluation failure. The caller is
// expected to audit-log the message and leave the alert state unchanged.
type EvalError struct {
	msg string
}

func (e *EvalError) Error() string {
	return e.msg
}

// ErrNotBoolean reports a condition whose final value is not a boolean.
var ErrNotBoolean = &EvalError{msg: "condition did not evaluate to a boolean"}

// Evaluator builds evaluation scopes from a record source and evaluates
// condition expressions in them.
type Evaluator struct {
	records    RecordSource
	windowSize int
}

// NewEvaluator creates an Evaluator over the given record source.
// windowSize <= 0 selects DefaultWindowSize.
func NewEvaluator(records RecordSource, windowSize int) *Evaluator {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Evaluator{records: records, windowSize: windowSize}
}

// Evaluate runs the condition expression against the latest records of
// the signal set. It returns the boolean result, or an *EvalError for
// every recoverable failure: fetch errors, syntax and runtime errors, and
// non-boolean results.
func (e *Evaluator) Evaluate(ctx context.Context, condition, sigSet string) (bool, error) {
	recs, err := e.records.LatestRecords(ctx, sigSet, e.windowSize)
	if err != nil {
		return false, &EvalError{msg: fmt.Sprintf("fetch records: %s", err)}
	}

	scope := buildScope(recs)

	statements := splitStatements(condition)
	if len(statements) == 0 {
		return false, ErrNotBoolean
	}

	var last any
	for _, stmt := range statements {
		last, err = evalStatement(stmt, scope)
		if err != nil {
			return false, &EvalError{msg: err.Error()}
		}
	}

	if b, ok := last.(bool); ok {
		return b, nil
	}
	// A multi-valued result counts as boolean if its last entry is.
	if seq, ok := last.([]any); ok && len(seq) > 0 {
		if b, ok := seq[len(seq)-1].(bool); ok {
			return b, nil
		}
	}
	return false, ErrNotBoolean
}

// buildScope binds the newest record's fields as $-prefixed variables and
// the aggregate functions as closures over the full window.
func buildScope(recs []models.Record) map[string]any {
	scope := make(map[string]any)

	if len(recs) > 0 {
		for key, value := range recs[0] {
			scope["$"+key] = value
		}
	}

	scope["past"] = func(field string, distance int) any {
		return stats.Past(recs, field, distance)
	}
	scope["avg"] = func(field string, length int) (float64, error) {
		return stats.Avg(recs, field, length)
	}
	scope["vari"] = func(field string, length int) (float64, error) {
		return stats.Vari(recs, field, length)
	}
	scope["min"] = func(field string, length int) any {
		return stats.Min(recs, field, length)
	}
	scope["max"] = func(field string, length int) any {
		return stats.Max(recs, field, length)
	}
	scope["qnt"] = func(field string, length int, q float64) any {
		return stats.Qnt(recs, field, length, q)
	}
	scope["equalText"] = func(a, b string) bool {
		return a == b
	}

	return scope
}
