package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/runner"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

func tcase(id, arch, distro, imageType string) *testcase.TestCase {
	desc := map[string]any{}
	if arch != "" {
		desc[testcase.KeyArch] = arch
	}
	if distro != "" {
		desc[testcase.KeyDistro] = distro
	}
	if imageType != "" {
		desc[testcase.KeyImageType] = imageType
	}
	return &testcase.TestCase{ID: id, Desc: desc}
}

func selected(t *testing.T, opts Options, cases []*testcase.TestCase) []string {
	t.Helper()
	pred, err := Filter(opts)
	if err != nil {
		t.Fatalf("Filter(%+v) error: %v", opts, err)
	}
	var ids []string
	for _, tc := range cases {
		if pred(tc) {
			ids = append(ids, tc.ID)
		}
	}
	return ids
}

func TestFilter(t *testing.T) {
	cases := []*testcase.TestCase{
		tcase("f1-x86-qcow2", "x86", "f1", "qcow2"),
		tcase("f1-arm-qcow2", "arm", "f1", "qcow2"),
		tcase("f2-x86-ami", "x86", "f2", "ami"),
	}

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"none", Options{}, []string{"f1-x86-qcow2", "f1-arm-qcow2", "f2-x86-ami"}},
		{"arch", Options{Arch: "x86"}, []string{"f1-x86-qcow2", "f2-x86-ami"}},
		{"distro", Options{Distro: "f1"}, []string{"f1-x86-qcow2", "f1-arm-qcow2"}},
		{"arch and distro", Options{Arch: "x86", Distro: "f1"}, []string{"f1-x86-qcow2"}},
		{"name glob", Options{Name: "f1-*"}, []string{"f1-x86-qcow2", "f1-arm-qcow2"}},
		{"name glob after arch", Options{Arch: "arm", Name: "*-x86-*"}, nil},
		{"where", Options{Where: `image_type == "ami"`}, []string{"f2-x86-ami"}},
		{"where desc", Options{Where: `desc["arch"] == "arm"`}, []string{"f1-arm-qcow2"}},
		{"no match", Options{Arch: "ppc64le"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selected(t, tt.opts, cases)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("selected mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterKeepsLoadFailures(t *testing.T) {
	broken := &testcase.TestCase{ID: "broken"}
	broken.Fail(failure.New(failure.Load, "invalid test descriptor"))

	got := selected(t, Options{Arch: "x86", Name: "f*"}, []*testcase.TestCase{broken})
	if diff := cmp.Diff([]string{"broken"}, got); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterBadWhere(t *testing.T) {
	if _, err := Filter(Options{Where: `arch ==`}); err == nil {
		t.Error("Filter() with malformed expression succeeded")
	}
	if _, err := Filter(Options{Where: `arch`}); err == nil {
		t.Error("Filter() with non-boolean expression succeeded")
	}
}

func TestComputeStats(t *testing.T) {
	cases := []*testcase.TestCase{
		tcase("a", "x86", "f1", "qcow2"),
		tcase("b", "arm", "f1", "qcow2"),
		tcase("c", "x86", "f2", ""),
	}
	got := ComputeStats(cases)
	want := Stats{
		Total:       3,
		ByDistro:    map[string]int{"f1": 2, "f2": 1},
		ByArch:      map[string]int{"x86": 2, "arm": 1},
		ByImageType: map[string]int{"qcow2": 2, NoValue: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeStats() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"arm", "x86"}, SortedKeys(got.ByArch)); diff != "" {
		t.Errorf("SortedKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestStatsWriteTable(t *testing.T) {
	s := ComputeStats([]*testcase.TestCase{
		tcase("a", "x86_64", "fedora_38", "qcow2"),
		tcase("b", "aarch64", "fedora_38", "qcow2"),
	})
	var buf bytes.Buffer
	if err := s.WriteTable(&buf); err != nil {
		t.Fatalf("WriteTable() error: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "aarch64") > strings.Index(out, "x86_64") {
		t.Errorf("arch keys not sorted:\n%s", out)
	}
	if !strings.Contains(out, "2 tests") {
		t.Errorf("table missing total:\n%s", out)
	}
}

func TestStatsMarkdown(t *testing.T) {
	md := ComputeStats([]*testcase.TestCase{tcase("a", "x86_64", "rhel_8", "tar")}).Markdown()
	for _, want := range []string{"## By distro", "| rhel_8 | 1 |", "| tar | 1 |"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
	if got := RenderMarkdown("", 80); got != "" {
		t.Errorf("RenderMarkdown(\"\") = %q, want empty", got)
	}
}

func results() []*runner.Result {
	return []*runner.Result{
		{ID: "ok", Status: runner.StatusPassed},
		{ID: "bad", Status: runner.StatusFailed, Reason: failure.MsgImageInfoMismatch, ErrorClass: failure.Mismatch, Detail: "-a\n+b"},
		{ID: "dry", Status: runner.StatusSkipped, Reason: "dry run"},
		{ID: "gone", Status: runner.StatusFailed, Reason: failure.MsgUnsupportedFormat, ErrorClass: failure.UnsupportedFormat},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(results())
	want := Summary{
		Total: 4, Passed: 1, Failed: 2, Skipped: 1,
		ByClass: map[string]int{"mismatch": 1, "unsupported-format": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
	if got.OK() {
		t.Error("OK() = true with failures")
	}
}

func TestFailuresGroupedByClass(t *testing.T) {
	var ids []string
	for _, r := range Failures(results()) {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"bad", "gone"}, ids); diff != "" {
		t.Errorf("Failures() mismatch (-want +got):\n%s", diff)
	}
}

func TestReporterText(t *testing.T) {
	var buf bytes.Buffer
	rp := NewReporter(&buf, false, true)
	rs := results()
	for _, r := range rs {
		rp.Result(r)
	}
	if err := rp.Finish(rs); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		GlyphPassed + " ok",
		GlyphFailed + " bad",
		"image-info mismatch",
		GlyphSkipped + " dry",
		"Unsupported manifest format",
		"+b",
		"4 tests:",
		"2 failed",
		"Failures\n  mismatch\n    " + GlyphFailed + " bad",
		"  unsupported-format\n    " + GlyphFailed + " gone",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReporterQuietHasNoFailureSection(t *testing.T) {
	var buf bytes.Buffer
	rp := NewReporter(&buf, false, false)
	if err := rp.Finish(results()); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if strings.Contains(buf.String(), "Failures") {
		t.Errorf("non-verbose output lists failures:\n%s", buf.String())
	}
}

func TestReporterJSON(t *testing.T) {
	var buf bytes.Buffer
	rp := NewReporter(&buf, true, false)
	rs := results()
	for _, r := range rs {
		rp.Result(r)
	}
	if err := rp.Finish(rs); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	var doc struct {
		Results []map[string]any `json:"results"`
		Summary Summary          `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not one JSON document: %v\n%s", err, buf.String())
	}
	if len(doc.Results) != 4 || doc.Summary.Failed != 2 {
		t.Errorf("got %d results, %d failed; want 4, 2", len(doc.Results), doc.Summary.Failed)
	}
	if got := doc.Results[1]["reason"]; got != failure.MsgImageInfoMismatch {
		t.Errorf("results[1].reason = %v, want %q", got, failure.MsgImageInfoMismatch)
	}
}
