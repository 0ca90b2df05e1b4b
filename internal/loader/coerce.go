package loader

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dwh/internal/schema"
)

// coerce converts a decoded JSON value into the Go value bound for a column
// of type t. JSON null, a missing key and blank strings in numeric columns
// all become NULL.
func coerce(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.Int32:
		return coerceInt(v, math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) })
	case schema.SmallInt:
		return coerceInt(v, math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) })
	case schema.Float64:
		return coerceFloat(v)
	default:
		return coerceString(v)
	}
}

func coerceString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("cannot render %T as text: %w", v, err)
		}
		return string(b), nil
	}
}

func numericText(v any) (string, bool, error) {
	switch x := v.(type) {
	case json.Number:
		return x.String(), true, nil
	case string:
		s := strings.TrimSpace(x)
		return s, s != "", nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(x), true, nil
	default:
		return "", false, fmt.Errorf("cannot convert %T to a number", v)
	}
}

func coerceInt(v any, lo, hi int64, conv func(int64) any) (any, error) {
	s, ok, err := numericText(v)
	if err != nil || !ok {
		return nil, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		if f < float64(lo) || f > float64(hi) {
			return nil, fmt.Errorf("integer %s out of range", s)
		}
		n = int64(f)
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("integer %d out of range", n)
	}
	return conv(n), nil
}

func coerceFloat(v any) (any, error) {
	s, ok, err := numericText(v)
	if err != nil || !ok {
		return nil, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}
