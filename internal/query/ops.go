package query

import (
	"fmt"
	"regexp"
	"strings"
)

// compare evaluates op(value, target) for the where/join.on operator
// set. A missing column compares as null and never errors.
func compare(value any, op Op, target any) bool {
	switch op {
	case OpEq:
		return equal(value, target)
	case OpNeq:
		return !equal(value, target)
	case OpLt:
		return numericLess(value, target)
	case OpLte:
		return numericLess(value, target) || equal(value, target)
	case OpGt:
		return numericLess(target, value)
	case OpGte:
		return numericLess(target, value) || equal(value, target)
	case OpIn:
		return membership(value, target)
	case OpNotIn:
		return !membership(value, target)
	case OpBetween:
		lo, hi, ok := pairBounds(target)
		return ok && !numericLess(value, lo) && !numericLess(hi, value)
	case OpNotBetween:
		lo, hi, ok := pairBounds(target)
		return !ok || numericLess(value, lo) || numericLess(hi, value)
	case OpLike:
		return likeMatch(value, target, true)
	case OpNotLike:
		return !likeMatch(value, target, true)
	default:
		return false
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// numericLess compares numerically when both sides are numbers/bools,
// lexicographically when both are text, structurally (string form)
// otherwise.
func numericLess(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	as, asok := a.(string)
	bs, bsok := b.(string)
	if asok && bsok {
		return as < bs
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// membership implements `in`/`is in`: list membership, or substring
// match when target is a string.
func membership(value, target any) bool {
	switch t := target.(type) {
	case []any:
		for _, item := range t {
			if equal(value, item) {
				return true
			}
		}
		return false
	case string:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return strings.Contains(t, s)
	default:
		return false
	}
}

func pairBounds(target any) (lo, hi any, ok bool) {
	pair, isList := target.([]any)
	if !isList || len(pair) != 2 {
		return nil, nil, false
	}
	return pair[0], pair[1], true
}

// likeMatch implements SQL-style % (any run) and _ (single char)
// wildcards. If target contains neither wildcard, like degenerates to
// equality. The substitution runs against the quoted pattern, escaping
// every other regex metacharacter, so a literal dot or bracket in the
// pattern never matches as a wildcard.
func likeMatch(value, target any, caseSensitive bool) bool {
	pattern, ok := target.(string)
	if !ok {
		return false
	}
	str, ok := value.(string)
	if !ok {
		return false
	}

	if !strings.ContainsAny(pattern, "%_") {
		if caseSensitive {
			return str == pattern
		}
		return strings.EqualFold(str, pattern)
	}

	re := likeToRegexp(pattern)
	if !caseSensitive {
		re = "(?i)" + re
	}
	matched, err := regexp.MatchString(re, str)
	return err == nil && matched
}

func likeToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
