package gps

import (
	"encoding/json"
	"strconv"
)

// Number coerces a decoded JSON value into a float64. Signal K servers and
// some plugins emit numeric fields either as numbers or as quoted numeric
// strings; anything else counts as absent.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumberPtr is Number with pointer-shaped output for optional columns.
func NumberPtr(v any) *float64 {
	f, ok := Number(v)
	if !ok {
		return nil
	}
	return &f
}
