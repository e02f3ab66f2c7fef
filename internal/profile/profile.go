// Package profile defines the typed records served by the taudash API and
// consumed by the selection state machine.
package profile

import (
	"fmt"
	"strconv"
)

// Application is a profiled program, identified by name.
type Application struct {
	Name string `json:"name"`
}

// Trial is one profiled execution run within an application.
type Trial struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Metric is a measured quantity (e.g. TIME) collected for a trial.
type Metric struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Thread is an execution context within a trial. Name is the display name,
// which for aggregate rows comes from ThreadName.
type Thread struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MetadataEntry is one name/value pair of trial metadata.
type MetadataEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProfileRow is one call path's measured values for a (metric, thread) pair.
type ProfileRow struct {
	Callpath         string  `json:"timer_callpath"`
	ID               int64   `json:"id"`
	ShortName        string  `json:"short_name"`
	InclusiveValue   float64 `json:"inclusive_value"`
	InclusivePercent float64 `json:"inclusive_percent"`
	ExclusiveValue   float64 `json:"exclusive_value"`
	ExclusivePercent float64 `json:"exclusive_percent"`
}

// Value returns the row's value for the given type.
func (r ProfileRow) Value(t ValueType) float64 {
	if t == Inclusive {
		return r.InclusiveValue
	}
	return r.ExclusiveValue
}

// Percent returns the row's percentage for the given type.
func (r ProfileRow) Percent(t ValueType) float64 {
	if t == Inclusive {
		return r.InclusivePercent
	}
	return r.ExclusivePercent
}

// ValueType selects between inclusive and exclusive timer measurements.
type ValueType string

const (
	Inclusive ValueType = "inclusive"
	Exclusive ValueType = "exclusive"
)

// ParseValueType parses a "type" query parameter. Empty means Exclusive.
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "":
		return Exclusive, nil
	case string(Inclusive):
		return Inclusive, nil
	case string(Exclusive):
		return Exclusive, nil
	default:
		return "", fmt.Errorf("invalid value type %q (want inclusive or exclusive)", s)
	}
}

// Toggle returns the other value type.
func (t ValueType) Toggle() ValueType {
	if t == Inclusive {
		return Exclusive
	}
	return Inclusive
}

// aggregateThreadNames maps the synthetic negative thread indexes TAU uses
// for aggregate rows to their display names.
var aggregateThreadNames = map[int64]string{
	-1: "Mean (No Null)",
	-2: "Total",
	-3: "Std Dev (No Null)",
	-4: "Min",
	-5: "Max",
	-6: "Mean",
	-7: "Std Dev",
}

// ThreadName returns the display name for a thread index. Non-negative
// indexes render as their number; unknown negative indexes do too.
func ThreadName(index int64) string {
	if index < 0 {
		if name, ok := aggregateThreadNames[index]; ok {
			return name
		}
	}
	return strconv.FormatInt(index, 10)
}
