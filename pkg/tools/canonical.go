package tools

import (
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/ormasoftchile/imgtest/pkg/manifest"
)

// Canonical encodes v as RFC 8785 canonical JSON: sorted object keys, no
// insignificant whitespace, numbers and strings normalized. Numbers are
// written as doubles, so 1.50 becomes 1.5; a json.Number whose value a
// double cannot hold is an error rather than being rounded.
func Canonical(v any) ([]byte, error) {
	if errs := manifest.NumberErrors(v, ""); len(errs) > 0 {
		return nil, fmt.Errorf("canonicalize payload: %w", errs[0])
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return out, nil
}
