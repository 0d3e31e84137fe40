package opt

import "fmt"

// ConfigurationError reports malformed optimization or solver configuration.
// It always fires before any model is handed to a solver.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// DataError reports a candidate row that cannot enter the model.
type DataError struct {
	ID     string // candidate id when known
	Row    int    // zero-based row index in the input table
	Reason string
}

func (e *DataError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("data: candidate %s (row %d): %s", e.ID, e.Row, e.Reason)
	}
	return fmt.Sprintf("data: row %d: %s", e.Row, e.Reason)
}

// ConsistencyError means an extracted solution violated a constraint the
// solver claimed to satisfy. It indicates a solver/modeling mismatch, not bad
// user input.
type ConsistencyError struct {
	Constraint string
	Detail     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("solution consistency: %s: %s", e.Constraint, e.Detail)
}
