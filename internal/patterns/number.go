package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingQualifier = regexp.MustCompile(`(?i)^\s*(?:[<>≤≥~≈]=?|typ(?:ical)?\.?|max(?:imum)?\.?|min(?:imum)?\.?|up to|approx\.?|ca\.)\s*`)
	// A number must start at a word boundary so digits inside tokens such as
	// TEM00 or LX405 are not read as values.
	numberExpr       = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}.])([-+]?\d+(?:\.\d+)?)(?:\s*(±|\+/-|-|to)\s*([-+]?\d+(?:\.\d+)?))?`)
	dashReplacer     = strings.NewReplacer("−", "-", "–", "-", "—", "-", ",", "")
)

// ParseNumber reduces a numeric or range expression to one representative
// number. Comparison operators and qualifiers are dropped, "A±B" yields A and
// "A-B" or "A to B" yields the midpoint. Text without a number reports false.
func ParseNumber(s string) (float64, bool) {
	s = dashReplacer.Replace(s)
	for {
		stripped := leadingQualifier.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	sm := numberExpr.FindStringSubmatch(s)
	if sm == nil {
		return 0, false
	}
	first, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return 0, false
	}
	switch sm[2] {
	case "":
		return first, true
	case "±", "+/-":
		return first, true
	default:
		second, err := strconv.ParseFloat(sm[3], 64)
		if err != nil {
			return first, true
		}
		return (first + second) / 2, true
	}
}

// StripOperator removes a leading comparison operator and reports which one
// was present.
func StripOperator(s string) (string, string) {
	s = strings.TrimSpace(s)
	for _, op := range []string{"<=", ">=", "≤", "≥", "<", ">", "~", "≈"} {
		if strings.HasPrefix(s, op) {
			return strings.TrimSpace(strings.TrimPrefix(s, op)), op
		}
	}
	return s, ""
}
