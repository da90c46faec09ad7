package datasource

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// normalizeValue maps driver-specific scan results onto the small set of
// types the JSON layer emits: nil, bool, int64, float64, string. Byte slices
// become strings, timestamps are rendered as RFC 3339, and anything the
// switch does not know becomes its string form.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case []byte:
		return string(val)
	case string:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return normalizeUint64(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return normalizeUint64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// normalizeUint64 keeps values above the int64 range exact by falling back to
// their decimal string form instead of wrapping negative.
func normalizeUint64(val uint64) any {
	if val > math.MaxInt64 {
		return strconv.FormatUint(val, 10)
	}
	return int64(val)
}
