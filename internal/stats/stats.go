// Package stats provides aggregate functions over signal-set record
// windows. All functions take records ordered newest first and operate on
// at most the requested number of latest records. Null (nil) field values
// are skipped.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/pulseboard/pulseboard/internal/models"
)

// NotNumericalError reports a non-null, non-numeric value in a signal that
// an aggregate function requires to be numeric.
type NotNumericalError struct {
	// Func is the aggregate function that detected the value.
	Func string
}

func (e *NotNumericalError) Error() string {
	return fmt.Sprintf("signal in %s function is not numerical", e.Func)
}

// Past returns the value of the field at the given distance in the past
// (0 = latest record). A distance beyond the window clamps to the oldest
// record; a negative distance clamps to the latest.
func Past(records []models.Record, field string, distance int) any {
	if len(records) == 0 {
		return nil
	}
	if distance >= len(records) {
		distance = len(records) - 1
	}
	if distance < 0 {
		distance = 0
	}
	return records[distance][field]
}

// Avg returns the arithmetic mean of the non-null values of the field
// across the first length records. A non-numeric value yields a
// NotNumericalError. With no values in range the result is NaN.
func Avg(records []models.Record, field string, length int) (float64, error) {
	return mean(records, field, length, "avg")
}

// Vari returns the population variance of the non-null values of the
// field across the first length records. Boundary behavior matches Avg,
// with the error attributed to vari.
func Vari(records []models.Record, field string, length int) (float64, error) {
	aver, err := mean(records, field, length, "vari")
	if err != nil {
		return 0, err
	}
	if length > len(records) {
		length = len(records)
	}
	sum := 0.0
	count := 0
	for i := 0; i < length; i++ {
		v := records[i][field]
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return 0, &NotNumericalError{Func: "vari"}
		}
		d := f - aver
		sum += d * d
		count++
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return sum / float64(count), nil
}

// Min returns the minimum non-null value of the field across the first
// length records, or nil if no non-null value is in range. Numeric values
// compare numerically, strings lexicographically.
func Min(records []models.Record, field string, length int) any {
	return extremum(records, field, length, func(candidate, current any) bool {
		return less(candidate, current)
	})
}

// Max returns the maximum non-null value of the field across the first
// length records, or nil if no non-null value is in range.
func Max(records []models.Record, field string, length int) any {
	return extremum(records, field, length, func(candidate, current any) bool {
		return less(current, candidate)
	})
}

// Qnt returns the nearest-rank quantile of the non-null values of the
// field across the first length records: the values are sorted (numeric
// order when any value is numeric, else lexicographic) and the element at
// index ceil(count*q)-1 is returned, with a negative index clamping to 0.
// An index beyond the collected values, including count = 0, yields nil.
func Qnt(records []models.Record, field string, length int, q float64) any {
	if length > len(records) {
		length = len(records)
	}
	var values []any
	for i := 0; i < length; i++ {
		if v := records[i][field]; v != nil {
			values = append(values, v)
		}
	}
	numeric := false
	for _, v := range values {
		if _, ok := toFloat(v); ok {
			numeric = true
			break
		}
	}
	sort.SliceStable(values, func(i, j int) bool {
		if numeric {
			return numLess(values[i], values[j])
		}
		return fmt.Sprint(values[i]) < fmt.Sprint(values[j])
	})
	index := int(math.Ceil(float64(len(values))*q)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		return nil
	}
	return values[index]
}

func mean(records []models.Record, field string, length int, funcName string) (float64, error) {
	if length > len(records) {
		length = len(records)
	}
	sum := 0.0
	count := 0
	for i := 0; i < length; i++ {
		v := records[i][field]
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return 0, &NotNumericalError{Func: funcName}
		}
		sum += f
		count++
	}
	if count == 0 {
		return math.NaN(), nil
	}
	return sum / float64(count), nil
}

func extremum(records []models.Record, field string, length int, better func(candidate, current any) bool) any {
	if length > len(records) {
		length = len(records)
	}
	var best any
	for i := 0; i < length; i++ {
		v := records[i][field]
		if v == nil {
			continue
		}
		if best == nil || better(v, best) {
			best = v
		}
	}
	return best
}

// toFloat coerces the numeric types the record stores produce to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// less orders two non-null values: numerically when both are numeric,
// otherwise by string form.
func less(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa < fb
	}
	sa, saok := a.(string)
	sb, sbok := b.(string)
	if saok && sbok {
		return sa < sb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// numLess orders values for a numeric quantile sort; non-numeric values
// sort after numeric ones.
func numLess(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	switch {
	case aok && bok:
		return fa < fb
	case aok:
		return true
	case bok:
		return false
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}
