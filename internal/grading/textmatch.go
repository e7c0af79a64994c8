package grading

import (
	"math"
	"strconv"
	"strings"
)

// parseFloatLoose accepts "3.14" and "3.14 m/s" (first field). Infinities and
// NaN are rejected even though strconv would parse them.
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		sp := strings.Fields(s)
		if len(sp) == 0 {
			return 0, false
		}
		if v, err = strconv.ParseFloat(sp[0], 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func textEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
