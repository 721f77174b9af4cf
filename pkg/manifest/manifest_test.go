package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustDoc(t *testing.T, s string) any {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return doc
}

// libDir returns the absolute path to testdata/lib.
func libDir(t *testing.T) string {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(file), "..", "..", "testdata", "lib")
	if _, err := os.Stat(dir); err != nil {
		t.Skipf("testdata lib directory not found: %s", dir)
	}
	return dir
}

const v2Doc = `{
  "version": "2",
  "pipelines": [
    {"name": "build", "runner": "org.osbuild.fedora38", "stages": [{"type": "org.osbuild.rpm"}]},
    {"name": "os", "build": "name:build", "stages": [{"type": "org.osbuild.hostname", "options": {"hostname": "h"}}]},
    {"name": "image", "build": "name:build", "stages": [{"type": "org.osbuild.truncate", "options": {"size": 1024}}]}
  ],
  "sources": {}
}`

const v1Doc = `{
  "pipeline": {
    "build": {
      "pipeline": {"stages": [{"name": "org.osbuild.rpm"}]},
      "runner": "org.osbuild.fedora30"
    },
    "stages": [{"name": "org.osbuild.hostname", "options": {"hostname": "h"}}],
    "assembler": {"name": "org.osbuild.qemu", "options": {"format": "qcow2"}}
  }
}`

func TestGraphOrderAndLookup(t *testing.T) {
	g := NewGraph("test")
	for _, name := range []string{"c", "a", "b"} {
		if err := g.Add(&Pipeline{Name: name}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, g.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if !g.Has("a") || g.Has("z") {
		t.Error("Has() lookup wrong")
	}
	if err := g.Add(&Pipeline{Name: "a"}); err == nil {
		t.Error("expected duplicate name error")
	}
	if err := g.Add(&Pipeline{Name: "d", Build: "missing"}); err == nil {
		t.Error("expected unknown build reference error")
	}
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
}

func TestDetect(t *testing.T) {
	idx := NewIndex("")
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"v2", `{"version": "2", "pipelines": []}`, "v2"},
		{"v1", `{"pipeline": {}}`, "v1"},
		{"unknown version", `{"version": "99"}`, ""},
		{"numeric version", `{"version": 2}`, ""},
		{"not an object", `[1, 2]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := idx.Detect(mustDoc(t, tt.doc))
			got := ""
			if f != nil {
				got = f.Name()
			}
			if got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestV2ValidateAndLoad(t *testing.T) {
	idx := NewIndex("")
	doc := mustDoc(t, v2Doc)
	f := idx.Detect(doc)

	res, err := f.Validate(doc, idx)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid manifest, got %v", res.Errors)
	}

	g, err := f.Load(doc, idx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff([]string{"build", "os", "image"}, g.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	osp, _ := g.Get("os")
	if osp.Build != "build" {
		t.Errorf("os build = %q, want build", osp.Build)
	}
	if osp.Stages[0].Type != "org.osbuild.hostname" {
		t.Errorf("stage type = %q", osp.Stages[0].Type)
	}
}

func TestV2ValidateRejects(t *testing.T) {
	idx := NewIndex("")
	f, _ := idx.Lookup("v2")
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"missing pipelines", `{"version": "2"}`, ""},
		{"stage without type", `{"version": "2", "pipelines": [{"name": "a", "stages": [{}]}]}`, ""},
		{"unknown field", `{"version": "2", "pipelines": [], "extra": 1}`, ""},
		{"duplicate names", `{"version": "2", "pipelines": [{"name": "a"}, {"name": "a"}]}`, "duplicate pipeline name"},
		{"forward build ref", `{"version": "2", "pipelines": [{"name": "a", "build": "name:b"}, {"name": "b"}]}`, "must be declared before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Validate(mustDoc(t, tt.doc), idx)
			if err != nil {
				t.Fatalf("Validate error: %v", err)
			}
			if res.Valid {
				t.Fatal("expected invalid manifest")
			}
			if tt.wantMsg != "" && !strings.Contains(res.Errors[0].Message, tt.wantMsg) {
				t.Errorf("first error = %q, want substring %q", res.Errors[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestV1Load(t *testing.T) {
	idx := NewIndex("")
	doc := mustDoc(t, v1Doc)
	f := idx.Detect(doc)
	if f == nil || f.Name() != "v1" {
		t.Fatalf("Detect() = %v, want v1", f)
	}
	res, err := f.Validate(doc, idx)
	if err != nil || !res.Valid {
		t.Fatalf("Validate = %+v, %v", res, err)
	}
	g, err := f.Load(doc, idx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff([]string{"build", "tree", "assembler"}, g.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	tree, _ := g.Get("tree")
	if tree.Build != "build" || tree.Runner != "org.osbuild.fedora30" {
		t.Errorf("tree = %+v", tree)
	}
}

func TestV1NestedBuilds(t *testing.T) {
	idx := NewIndex("")
	doc := mustDoc(t, `{"pipeline": {"build": {"runner": "r1", "pipeline": {"build": {"runner": "r0", "pipeline": {}}}}}}`)
	f, _ := idx.Lookup("v1")
	g, err := f.Load(doc, idx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff([]string{"build.build", "build", "tree"}, g.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestStageOptionSchemas(t *testing.T) {
	idx := NewIndex(libDir(t))
	f, _ := idx.Lookup("v2")

	good := mustDoc(t, v2Doc)
	res, err := f.Validate(good, idx)
	if err != nil || !res.Valid {
		t.Fatalf("Validate(good) = %+v, %v", res, err)
	}

	bad := mustDoc(t, `{"version": "2", "pipelines": [{"name": "os", "stages": [{"type": "org.osbuild.hostname", "options": {"name": "x"}}]}]}`)
	res, err = f.Validate(bad, idx)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if res.Valid {
		t.Fatal("expected stage option violation")
	}
	if res.Errors[0].Phase != "stage" || !strings.HasPrefix(res.Errors[0].Path, "pipelines/0/stages/0/options") {
		t.Errorf("error = %+v", res.Errors[0])
	}
}

func TestStageTypeCannotLeaveLibdir(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	if err := os.MkdirAll(filepath.Join(lib, "schemas"), 0o755); err != nil {
		t.Fatal(err)
	}
	// A schema outside the library that would reject every options object.
	if err := os.WriteFile(filepath.Join(root, "outside.json"), []byte(`{"not": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	stages := NewStageSchemas(lib)
	for _, stage := range []string{"../../outside", "..", `..\outside`, "a/b"} {
		if _, err := stages.Lookup(stage); err == nil {
			t.Errorf("Lookup(%q) succeeded, want error", stage)
		}
	}

	idx := NewIndex(lib)
	f, _ := idx.Lookup("v2")
	doc := mustDoc(t, `{"version": "2", "pipelines": [{"name": "os", "stages": [{"type": "../../outside", "options": {}}]}]}`)
	res, err := f.Validate(doc, idx)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if res.Valid {
		t.Fatal("stage type with a path was accepted")
	}
	if got, want := res.Errors[0].Path, "pipelines/0/stages/0/type"; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if !strings.Contains(res.Errors[0].Message, "invalid stage type") {
		t.Errorf("Message = %q", res.Errors[0].Message)
	}
}

func TestRoundTripNonEmpty(t *testing.T) {
	idx := NewIndex("")
	for _, src := range []string{v1Doc, v2Doc} {
		doc := mustDoc(t, src)
		f := idx.Detect(doc)
		if res, err := f.Validate(doc, idx); err != nil || !res.Valid {
			t.Fatalf("Validate = %+v, %v", res, err)
		}
		g, err := f.Load(doc, idx)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if g.Len() == 0 {
			t.Errorf("%s: expected non-empty pipeline set", f.Name())
		}
	}
}

func TestSchemaExport(t *testing.T) {
	for _, f := range NewIndex("").Formats() {
		data, err := f.Schema()
		if err != nil {
			t.Fatalf("%s schema: %v", f.Name(), err)
		}
		if !strings.Contains(string(data), "2020-12") {
			t.Errorf("%s schema missing draft marker", f.Name())
		}
	}
}

func TestExactNumber(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"10737418240", true},
		{"9007199254740991", true},
		{"-9007199254740991", true},
		{"9007199254740992", false},
		{"9007199254740993", false},
		{"-9007199254740993", false},
		{"1.50", true},
		{"1e300", true},
		{"1e400", false},
	}
	for _, tt := range tests {
		if got := ExactNumber(json.Number(tt.in)); got != tt.want {
			t.Errorf("ExactNumber(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNumberErrors(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{
  "version": "2",
  "pipelines": [{"name": "image", "stages": [{"type": "org.osbuild.truncate", "options": {"size": 9007199254740993, "ratio": 1.50}}]}]
}`))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		t.Fatal(err)
	}
	errs := NumberErrors(doc, "")
	if len(errs) != 1 {
		t.Fatalf("NumberErrors() = %v, want one error", errs)
	}
	if got, want := errs[0].Path, "pipelines/0/stages/0/options/size"; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if errs := NumberErrors(mustDoc(t, v2Doc), ""); len(errs) != 0 {
		t.Errorf("NumberErrors(float64 doc) = %v, want none", errs)
	}
}
