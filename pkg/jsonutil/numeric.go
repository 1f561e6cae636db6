// Package jsonutil helps decode the loosely-typed wire formats used by
// both the storage RPC and the open-group REST API, where ids and
// timestamps arrive as a JSON number, a JSON string, or (via
// encoding/json's float64 default) a value that needs int64 truncation.
package jsonutil

import (
	"strconv"

	"github.com/oxen-io/session-network-core/pkg/errs"
)

// ParseInt64 accepts a float64 (the json.Unmarshal default for numbers),
// a json.Number-compatible string, or an int64/int already decoded by a
// caller, and fails with errs.ParsingFailed if none apply.
func ParseInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errs.NewParsingFailed(err)
		}
		return parsed, nil
	case nil:
		return 0, errs.NewParsingFailed(errMissingField)
	default:
		return 0, errs.NewParsingFailed(errUnsupportedNumericType)
	}
}

// ParseIntField looks up key in m and parses it with ParseInt64.
func ParseIntField(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok {
		return 0, errs.NewParsingFailed(errMissingField)
	}
	return ParseInt64(v)
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const (
	errMissingField           = sentinelErr("missing required field")
	errUnsupportedNumericType = sentinelErr("unsupported numeric type")
)
