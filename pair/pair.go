// Package pair parses strings of the form "<left><sep><right>" into two
// numbers, e.g. "1920x1080" or "-0.5,1.25".
package pair

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoDelimiter is returned when the separator does not occur in the input.
var ErrNoDelimiter = errors.New("pair: missing delimiter")

// ElementError reports that one side of a pair failed to parse. Err is
// the error returned by the element parser, typically *strconv.NumError.
type ElementError struct {
	Side  string // "left" or "right"
	Input string
	Err   error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("pair: %s element of %q: %v", e.Side, e.Input, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// Parse splits s at the first sep and parses both sides with parse.
func Parse[T any](s string, sep byte, parse func(string) (T, error)) (T, T, error) {
	var zero T
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return zero, zero, ErrNoDelimiter
	}
	l, err := parse(s[:i])
	if err != nil {
		return zero, zero, &ElementError{Side: "left", Input: s, Err: err}
	}
	r, err := parse(s[i+1:])
	if err != nil {
		return zero, zero, &ElementError{Side: "right", Input: s, Err: err}
	}
	return l, r, nil
}

// Ints parses a pair of non-negative decimal integers.
func Ints(s string, sep byte) (int, int, error) {
	return Parse(s, sep, parseUint)
}

// Floats parses a pair of float64 values.
func Floats(s string, sep byte) (float64, float64, error) {
	return Parse(s, sep, parseFloat)
}

func parseUint(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, strconv.IntSize-1)
	return int(n), err
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
