package models

// Record is one row of a signal set: signal cids mapped to values, plus
// the synthetic "id" field. Field values are whatever the record store
// yields: float64, int64, string, bool, or nil for sparse signals.
type Record map[string]any

// ID returns the synthetic id field of the record, or "" if absent.
func (r Record) ID() string {
	if v, ok := r["id"].(string); ok {
		return v
	}
	return ""
}
