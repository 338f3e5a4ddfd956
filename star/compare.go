package star

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// CompareValues is the null-safe comparator used to order column key
// values.  Nulls sort before all non-null values, matching the
// aggregation cache's axis ordering.  Numeric values compare
// numerically across int/float representations; everything else falls
// back to string comparison of its rendering.
func CompareValues(a, b any) int {
	if a == nil {
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if !aStr {
		as = fmt.Sprint(a)
	}
	if !bStr {
		bs = fmt.Sprint(b)
	}
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// SortValues sorts values in place with CompareValues.
func SortValues(values []any) {
	slices.SortFunc(values, func(a, b any) bool {
		return CompareValues(a, b) < 0
	})
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
