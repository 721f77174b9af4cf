// Package runner drives test cases through the resolve, plan, build and
// inspect stages and runs them on a bounded worker pool.
package runner

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

// Resolve detects the manifest format of tc, validates the manifest and
// loads its pipeline graph into tc.Graph. Numbers the build engine would
// receive with a different value fail validation. On failure the error is recorded
// on tc and Resolve returns false. A test case that already failed is left
// untouched; one that is already resolved returns true.
func Resolve(tc *testcase.TestCase, index manifest.FormatIndex) (ok bool) {
	if tc.Failed() {
		return false
	}
	if tc.Graph != nil {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			tc.Fail(failure.Newf(failure.Internal, "resolve manifest: %v", r))
			ok = false
		}
	}()

	format := index.Detect(tc.Manifest)
	if format == nil {
		tc.Fail(failure.New(failure.UnsupportedFormat, failure.MsgUnsupportedFormat))
		return false
	}
	tc.Format = format.Name()

	res, err := format.Validate(tc.Manifest, index)
	if err != nil {
		tc.Fail(failure.Wrap(failure.Validation, "", err))
		return false
	}
	if res.Valid {
		if errs := manifest.NumberErrors(tc.Manifest, ""); len(errs) > 0 {
			res.Valid = false
			res.Errors = errs
		}
	}
	if !res.Valid {
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.Error()
		}
		tc.Fail(failure.New(failure.Validation, failure.MsgInvalidManifest).
			WithDetail(strings.Join(msgs, "\n")))
		logging.Debug("Resolver", "%s: %d validation error(s)", tc.ID, len(res.Errors))
		return false
	}

	g, err := format.Load(tc.Manifest, index)
	if err != nil {
		tc.Fail(failure.Wrap(failure.Validation, fmt.Sprintf("load manifest: %v", err), err))
		return false
	}
	tc.Graph = g
	logging.Debug("Resolver", "%s: %s manifest with pipelines %v", tc.ID, tc.Format, g.Names())
	return true
}
