// Package testcase defines the test case entity and loads test descriptors
// from disk.
package testcase

import (
	"fmt"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/manifest"
)

// Descriptor keys used for filtering and statistics.
const (
	KeyArch      = "arch"
	KeyDistro    = "distro"
	KeyImageType = "image-type"
)

// TestCase is one image test: a manifest to build and the expected
// inspection output of the resulting image. Err is sticky: the first stage
// to fail sets it and every later stage is skipped.
type TestCase struct {
	Path string
	ID   string
	Desc map[string]any

	// Manifest is the raw manifest document; it is never modified.
	Manifest any
	// ImageInfo is the expected inspection output; nil means inspection
	// is skipped.
	ImageInfo any

	Format      string
	Graph       *manifest.Graph
	BuildResult map[string]any
	Inspection  any

	Err *failure.Error
}

// Fail records err as the test's failure unless one is already recorded.
// It reports whether err was recorded.
func (tc *TestCase) Fail(err error) bool {
	if err == nil || tc.Err != nil {
		return false
	}
	tc.Err = failure.From(failure.Internal, err)
	return true
}

// Failed reports whether a failure has been recorded.
func (tc *TestCase) Failed() bool {
	return tc.Err != nil
}

// HasImageInfo reports whether the test expects inspection output.
func (tc *TestCase) HasImageInfo() bool {
	return tc.ImageInfo != nil
}

// Arch returns the architecture from the descriptor, or "".
func (tc *TestCase) Arch() string { return tc.DescString(KeyArch) }

// Distro returns the distribution from the descriptor, or "".
func (tc *TestCase) Distro() string { return tc.DescString(KeyDistro) }

// ImageType returns the image type from the descriptor, or "".
func (tc *TestCase) ImageType() string { return tc.DescString(KeyImageType) }

// DescString returns the descriptor value for key formatted as a string.
func (tc *TestCase) DescString(key string) string {
	v, ok := tc.Desc[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
