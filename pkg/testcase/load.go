package testcase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/manifest"
)

// Load reads and parses one descriptor file. Failures are *failure.Error
// values of class Load.
func Load(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.Load, fmt.Sprintf("read test descriptor: %v", err), err)
	}
	return Parse(data, path)
}

// Parse parses a descriptor document. path is recorded on the test case and
// used in error messages.
func Parse(data []byte, path string) (*TestCase, error) {
	// The manifest keeps its numbers as json.Number so integers that a
	// double cannot hold are detected during resolution instead of being
	// rounded on the way to the build engine.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, failure.Wrap(failure.Load, fmt.Sprintf("parse test descriptor %s: %v", path, err), err)
	}

	sch, err := compiledDescriptorSchema()
	if err != nil {
		return nil, failure.Wrap(failure.Internal, fmt.Sprintf("descriptor schema: %v", err), err)
	}
	if errs := manifest.SchemaErrors(sch, doc, "descriptor", ""); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, failure.Newf(failure.Load, "invalid test descriptor %s: %s", path, strings.Join(msgs, "; "))
	}

	m := doc.(map[string]any)
	tc := &TestCase{
		Path:     path,
		ID:       m["id"].(string),
		Desc:     m["desc"].(map[string]any),
		Manifest: m["manifest"],
	}

	// Expected inspection output is compared against freshly decoded tool
	// output, so both sides use the default number representation.
	var expected struct {
		ImageInfo any `json:"image-info"`
	}
	if err := json.Unmarshal(data, &expected); err != nil {
		return nil, failure.Wrap(failure.Load, fmt.Sprintf("parse image-info in %s: %v", path, err), err)
	}
	tc.ImageInfo = expected.ImageInfo
	return tc, nil
}

// Scan yields one test case per regular file in dir, in file name order.
// Files are read lazily as the sequence is consumed. A file that cannot be
// loaded yields a test case carrying the load failure, with the file name
// (minus extension) as its ID, so that it is still reported. Only a failure
// to read dir itself yields a non-nil error, after which the sequence ends.
func Scan(dir string) iter.Seq2[*TestCase, error] {
	return func(yield func(*TestCase, error) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			yield(nil, fmt.Errorf("read test directory: %w", err))
			return
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			tc, err := Load(path)
			if err != nil {
				logging.Warn("Loader", "%v", err)
				tc = &TestCase{
					Path: path,
					ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
					Desc: map[string]any{},
				}
				tc.Fail(err)
			} else {
				logging.Debug("Loader", "loaded %s from %s", tc.ID, path)
			}
			if !yield(tc, nil) {
				return
			}
		}
	}
}

// LoadAll collects every test case yielded by Scan.
func LoadAll(dir string) ([]*TestCase, error) {
	var cases []*TestCase
	for tc, err := range Scan(dir) {
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, nil
}
