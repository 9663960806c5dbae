package safe

import "math"

// Integer is the set of fixed-width integers read out of debug sections.
type Integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

// ToInt converts v to int, clamping it to the int range. The boolean reports
// whether clamping occurred.
func ToInt[T Integer](v T) (int, bool) {
	if v < 0 {
		if int64(v) < math.MinInt {
			return math.MinInt, true
		}
		return int(v), false
	}
	if uint64(v) > math.MaxInt {
		return math.MaxInt, true
	}
	return int(v), false
}
