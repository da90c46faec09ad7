// Package jsonutil handles the loosely typed JSON that language models emit.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleStringValue interprets a raw JSON value as an optional string.
// Models routinely emit numbers or booleans where the contract says string,
// so scalars are coerced instead of rejected. JSON null and an absent value
// both yield nil.
func FlexibleStringValue(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		v := strconv.FormatBool(b)
		return &v, nil
	}

	return nil, fmt.Errorf("value %s is not a scalar", string(raw))
}
