package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
cases: corpus
build_engine: /usr/bin/osbuild
store: /var/cache/osbuild
jobs: 4
timeout: 2h
test_timeout: 30m
filters:
  arch: x86_64
  name: "fedora_*"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if got, want := cfg.Cases, filepath.Join(dir, "corpus"); got != want {
		t.Errorf("Cases = %q, want %q", got, want)
	}
	if cfg.BuildEngine != "/usr/bin/osbuild" || cfg.Store != "/var/cache/osbuild" {
		t.Errorf("BuildEngine, Store = %q, %q", cfg.BuildEngine, cfg.Store)
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs = %d, want 4", cfg.Jobs)
	}
	if time.Duration(cfg.Timeout) != 2*time.Hour || time.Duration(cfg.TestTimeout) != 30*time.Minute {
		t.Errorf("Timeout, TestTimeout = %v, %v", time.Duration(cfg.Timeout), time.Duration(cfg.TestTimeout))
	}
	if cfg.Filters.Arch != "x86_64" || cfg.Filters.Name != "fedora_*" {
		t.Errorf("Filters = %+v", cfg.Filters)
	}
	if cfg.Inspector != Default().Inspector {
		t.Errorf("Inspector = %q, want default", cfg.Inspector)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad yaml":     "jobs: [",
		"bad duration": "timeout: soon",
		"negative":     "timeout: -1s",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			writeFile(t, path, content)
			if _, err := LoadFile(path); err == nil {
				t.Error("LoadFile() succeeded, want error")
			}
		})
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile() of missing file succeeded")
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "jobs: 2\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if want := filepath.Join(root, FileName); got != want {
		t.Errorf("Discover() = %q, want %q", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"IMGTEST_BUILD_ENGINE": "/opt/osbuild",
		"IMGTEST_JOBS":         "8",
		"IMGTEST_DRY_RUN":      "true",
		"IMGTEST_TEST_TIMEOUT": "90s",
		"IMGTEST_DISTRO":       "rhel_8",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.BuildEngine != "/opt/osbuild" || cfg.Jobs != 8 || !cfg.DryRun {
		t.Errorf("got BuildEngine=%q Jobs=%d DryRun=%v", cfg.BuildEngine, cfg.Jobs, cfg.DryRun)
	}
	if time.Duration(cfg.TestTimeout) != 90*time.Second {
		t.Errorf("TestTimeout = %v, want 90s", time.Duration(cfg.TestTimeout))
	}
	if cfg.Filters.Distro != "rhel_8" {
		t.Errorf("Filters.Distro = %q, want rhel_8", cfg.Filters.Distro)
	}

	bad := func(k string) (string, bool) {
		if k == "IMGTEST_JOBS" {
			return "many", true
		}
		return "", false
	}
	if err := Default().ApplyEnv(bad); err == nil {
		t.Error("ApplyEnv() with bad IMGTEST_JOBS succeeded")
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}

	cfg := Default()
	cfg.Jobs = 0
	cfg.BuildEngine = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"jobs", "build_engine"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %q", err, want)
		}
	}

	cfg = Default()
	cfg.DryRun = true
	cfg.BuildEngine = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("dry run Validate() = %v, want nil", err)
	}
}

func TestParseDotEnv(t *testing.T) {
	in := `
# comment
IMGTEST_STORE=/tmp/store
export IMGTEST_JOBS = "3"
QUOTED='x y'
noequals
`
	got, err := ParseDotEnv(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseDotEnv() error: %v", err)
	}
	want := map[string]string{
		"IMGTEST_STORE": "/tmp/store",
		"IMGTEST_JOBS":  "3",
		"QUOTED":        "x y",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDotEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "IMGTEST_DOTENV_SET=from-file\nIMGTEST_DOTENV_NEW=new\n")
	t.Setenv("IMGTEST_DOTENV_SET", "from-env")
	t.Setenv("IMGTEST_DOTENV_NEW", "")
	os.Unsetenv("IMGTEST_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv("IMGTEST_DOTENV_SET"); got != "from-env" {
		t.Errorf("IMGTEST_DOTENV_SET = %q, want from-env", got)
	}
	if got := os.Getenv("IMGTEST_DOTENV_NEW"); got != "new" {
		t.Errorf("IMGTEST_DOTENV_NEW = %q, want new", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("LoadDotEnv(missing) = %v, want nil", err)
	}
}
