package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FormatID renders a chat identifier as a decimal string. Identifiers arrive
// from the wire as numbers and from configuration as either numbers or
// strings; every comparison against the allow-list or the owner goes through
// here so both sides share one representation.
func FormatID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		s := strings.TrimSpace(id)
		if !isDigits(s) {
			return "", false
		}
		return canonicalDigits(s), true
	case json.Number:
		return FormatID(string(id))
	case int:
		return strconv.FormatInt(int64(id), 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case float64:
		if id < 0 || id != math.Trunc(id) || id > 1<<53 {
			return "", false
		}
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// canonicalDigits drops leading zeros so "0555" and 555 compare equal.
func canonicalDigits(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
