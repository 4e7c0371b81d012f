package pin

import (
	"strconv"
	"strings"
)

// Value is the wire form of a virtual pin payload. The platform transmits
// every value as a string; Value adds typed accessors and helpers for
// comma-separated arrays ("25.4,60,1013").
type Value string

// Int returns the value as an integer, or 0 if it does not parse.
func (v Value) Int() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(v)))
	if err != nil {
		return 0
	}
	return n
}

// Float returns the value as a float64, or 0 if it does not parse.
func (v Value) Float() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

// Bool returns true for "1", "true", and "on" (case-insensitive).
// Everything else, including numbers greater than one, is false.
func (v Value) Bool() bool {
	switch strings.ToLower(strings.TrimSpace(string(v))) {
	case "1", "true", "on":
		return true
	}
	return false
}

// String returns the raw wire form.
func (v Value) String() string {
	return string(v)
}

// ArraySize returns the number of comma-separated elements.
// An empty value has zero elements.
func (v Value) ArraySize() int {
	if len(v) == 0 {
		return 0
	}
	return strings.Count(string(v), ",") + 1
}

// ArrayElement returns the i-th comma-separated element, or "" if the
// index is out of range.
func (v Value) ArrayElement(i int) string {
	if i < 0 {
		return ""
	}
	parts := strings.Split(string(v), ",")
	if len(v) == 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// ArrayInt returns the i-th element as an integer, or 0 if out of range
// or unparseable.
func (v Value) ArrayInt(i int) int {
	return Value(v.ArrayElement(i)).Int()
}

// ArrayFloat returns the i-th element as a float64, or 0 if out of range
// or unparseable.
func (v Value) ArrayFloat(i int) float64 {
	return Value(v.ArrayElement(i)).Float()
}
