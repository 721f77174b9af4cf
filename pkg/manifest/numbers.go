package manifest

import (
	"encoding/json"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
)

// MaxSafeInteger is the largest integer magnitude an IEEE 754 double holds
// exactly. The build engine reads the manifest as canonical JSON, whose
// numbers are doubles.
const MaxSafeInteger = 1<<53 - 1

// ExactNumber reports whether n keeps its value as a double: integer
// literals must be within ±MaxSafeInteger, other literals must be finite.
func ExactNumber(n json.Number) bool {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && !math.IsInf(f, 0)
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return false
	}
	return i.CmpAbs(big.NewInt(MaxSafeInteger)) <= 0
}

// NumberErrors reports every json.Number in doc that would change value
// when encoded as a double. Paths follow the document structure, object
// keys in sorted order.
func NumberErrors(doc any, prefix string) []*ValidationError {
	res := &ValidationResult{Valid: true}
	walkNumbers(res, doc, prefix)
	return res.Errors
}

func walkNumbers(res *ValidationResult, v any, path string) {
	switch v := v.(type) {
	case json.Number:
		if !ExactNumber(v) {
			res.add("number", path, "number %s cannot be represented exactly (limit ±%d)", v, int64(MaxSafeInteger))
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			walkNumbers(res, v[k], joinPath(path, k))
		}
	case []any:
		for i, e := range v {
			walkNumbers(res, e, joinPath(path, strconv.Itoa(i)))
		}
	}
}

func joinPath(prefix, elem string) string {
	if prefix == "" {
		return elem
	}
	return prefix + "/" + elem
}
