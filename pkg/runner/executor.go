package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/ormasoftchile/imgtest/pkg/failure"
	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/plan"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

// Builder runs the build engine. Implemented by tools.BuildInvoker.
type Builder interface {
	Build(ctx context.Context, manifest any, outputDir string, p plan.Plan) (map[string]any, error)
}

// Inspector runs the inspection tool. Implemented by tools.InspectInvoker.
type Inspector interface {
	Inspect(ctx context.Context, target string) (any, error)
}

// ImageKey is the build result key naming the produced artifact.
const ImageKey = "image"

// Options configures an Executor.
type Options struct {
	// Store is the build store directory; checkpoint lock files live in
	// Store/.locks. Empty disables cross-process locking.
	Store string
	// OutputDir receives one subdirectory per test. When empty, scratch
	// directories under TempDir are used and removed after each test.
	OutputDir string
	TempDir   string
	DryRun    bool
	// TestTimeout bounds each test; zero means no limit.
	TestTimeout time.Duration
}

// Executor runs the per-test state machine:
// load -> plan -> build -> inspect. Once a stage records a failure on the
// test case, every later stage is reported as not attempted.
type Executor struct {
	Index     manifest.FormatIndex
	Builder   Builder
	Inspector Inspector
	Options   Options

	runID string
	locks *checkpointLocks

	mu  sync.Mutex
	ids map[string]*testcase.TestCase
}

// NewExecutor returns an Executor.
func NewExecutor(index manifest.FormatIndex, builder Builder, inspector Inspector, opts Options) *Executor {
	lockDir := ""
	if opts.Store != "" {
		lockDir = filepath.Join(opts.Store, ".locks")
	}
	return &Executor{
		Index:     index,
		Builder:   builder,
		Inspector: inspector,
		Options:   opts,
		runID:     uuid.NewString(),
		locks:     newCheckpointLocks(lockDir),
		ids:       make(map[string]*testcase.TestCase),
	}
}

// claim registers tc's ID for this run. A second test case with an ID
// already claimed fails with a load error, so no two tests share an output
// directory. Test cases that already failed claim nothing.
func (e *Executor) claim(tc *testcase.TestCase) {
	if tc.Failed() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.ids[tc.ID]
	switch {
	case !ok:
		e.ids[tc.ID] = tc
	case prev != tc:
		tc.Fail(failure.Newf(failure.Load, "duplicate test id %q, first defined in %s", tc.ID, prev.Path))
	}
}

// RunID identifies this executor's scratch space.
func (e *Executor) RunID() string { return e.runID }

func (e *Executor) scratchBase() string {
	return filepath.Join(e.Options.TempDir, "imgtest-"+e.runID)
}

// Close removes the scratch directory of the run, if any.
func (e *Executor) Close() error {
	if e.Options.OutputDir != "" {
		return nil
	}
	return os.RemoveAll(e.scratchBase())
}

// Run drives tc through every stage and returns the attributed result.
// All failures are recorded on tc; Run itself never fails.
func (e *Executor) Run(ctx context.Context, tc *testcase.TestCase) *Result {
	start := time.Now()
	if e.Options.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Options.TestTimeout)
		defer cancel()
	}

	e.claim(tc)
	res := &Result{ID: tc.ID, Path: tc.Path, Desc: tc.Desc, State: StateFresh}
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	res.Stages = append(res.Stages, e.load(tc, res))
	p, sr := e.plan(tc, res)
	res.Stages = append(res.Stages, sr)
	outputDir, sr := e.build(ctx, tc, p, res, &cleanup)
	res.Stages = append(res.Stages, sr)
	res.Stages = append(res.Stages, e.inspect(ctx, tc, p, outputDir, res))

	res.Format = tc.Format
	switch {
	case tc.Err != nil:
		res.State = StateFailed
		res.Status = StatusFailed
		res.Reason = tc.Err.Message
		res.ErrorClass = tc.Err.Class
		res.Detail = tc.Err.Detail
	case e.Options.DryRun:
		res.Status = StatusSkipped
		res.Reason = "dry run"
	default:
		res.Status = StatusPassed
		if !tc.HasImageInfo() {
			res.Reason = "no image-info, inspection skipped"
		}
	}
	res.DurationMs = time.Since(start).Milliseconds()
	logging.Info("Executor", "%s: %s (%s) %s", tc.ID, res.Status, res.State, res.Reason)
	return res
}

func (e *Executor) load(tc *testcase.TestCase, res *Result) StageResult {
	start := time.Now()
	if tc.Failed() || !Resolve(tc, e.Index) {
		return stageResult(StageLoad, OutcomeFailed, tc.Err.Message, start)
	}
	res.State = StateLoaded
	return stageResult(StageLoad, OutcomeOK, "", start)
}

func (e *Executor) plan(tc *testcase.TestCase, res *Result) (plan.Plan, StageResult) {
	start := time.Now()
	if tc.Failed() {
		return plan.Plan{}, stageResult(StagePlan, OutcomeNotAttempted, "", start)
	}
	p := plan.Derive(tc.Graph)
	res.Plan = &p
	res.State = StatePlanned
	return p, stageResult(StagePlan, OutcomeOK, "", start)
}

func (e *Executor) build(ctx context.Context, tc *testcase.TestCase, p plan.Plan, res *Result, cleanup *[]func()) (string, StageResult) {
	start := time.Now()
	if tc.Failed() {
		return "", stageResult(StageBuild, OutcomeNotAttempted, "", start)
	}
	if e.Options.DryRun {
		logging.Info("Build", "%s: dry run, exports %v checkpoints %v", tc.ID, p.Exports, p.Checkpoints)
		res.State = StateBuilt
		return "", stageResult(StageBuild, OutcomeOK, "dry run", start)
	}

	outputDir, remove, err := e.prepareOutputDir(tc.ID)
	if err != nil {
		tc.Fail(failure.Wrap(failure.Internal, "", err))
		return "", stageResult(StageBuild, OutcomeFailed, tc.Err.Message, start)
	}
	if remove != nil {
		*cleanup = append(*cleanup, remove)
	}

	release, err := e.locks.acquire(ctx, p.Checkpoints)
	if err != nil {
		tc.Fail(failure.Wrap(failure.Timeout, "", err))
		return outputDir, stageResult(StageBuild, OutcomeFailed, tc.Err.Message, start)
	}
	result, err := e.Builder.Build(ctx, tc.Manifest, outputDir, p)
	release()
	if err != nil {
		tc.Fail(failure.From(failure.ExternalTool, err))
		return outputDir, stageResult(StageBuild, OutcomeFailed, tc.Err.Message, start)
	}
	tc.BuildResult = result
	res.State = StateBuilt
	return outputDir, stageResult(StageBuild, OutcomeOK, "", start)
}

func (e *Executor) inspect(ctx context.Context, tc *testcase.TestCase, p plan.Plan, outputDir string, res *Result) StageResult {
	start := time.Now()
	switch {
	case tc.Failed():
		return stageResult(StageInspect, OutcomeNotAttempted, "", start)
	case e.Options.DryRun:
		return stageResult(StageInspect, OutcomeSkipped, "dry run", start)
	case !tc.HasImageInfo():
		return stageResult(StageInspect, OutcomeSkipped, "no image-info", start)
	}

	image := artifactRef(tc.BuildResult, p.Exports)
	if image == "" {
		tc.Fail(failure.New(failure.MissingArtifact, failure.MsgImageNotProduced))
		return stageResult(StageInspect, OutcomeFailed, tc.Err.Message, start)
	}
	target := artifactPath(image, outputDir, p.Exports)

	actual, err := e.Inspector.Inspect(ctx, target)
	if err != nil {
		tc.Fail(failure.From(failure.ExternalTool, err))
		return stageResult(StageInspect, OutcomeFailed, tc.Err.Message, start)
	}
	tc.Inspection = actual

	if !cmp.Equal(tc.ImageInfo, actual) {
		tc.Fail(failure.New(failure.Mismatch, failure.MsgImageInfoMismatch).
			WithDetail(cmp.Diff(tc.ImageInfo, actual)))
		return stageResult(StageInspect, OutcomeFailed, tc.Err.Message, start)
	}
	res.State = StateInspected
	return stageResult(StageInspect, OutcomeOK, "", start)
}

// prepareOutputDir creates the test's output directory. The returned
// function, when non-nil, removes a scratch directory.
func (e *Executor) prepareOutputDir(id string) (string, func(), error) {
	if e.Options.OutputDir != "" {
		dir := filepath.Join(e.Options.OutputDir, safeName(id))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create output directory: %w", err)
		}
		return dir, nil, nil
	}
	base := e.scratchBase()
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", nil, fmt.Errorf("create scratch directory: %w", err)
	}
	dir, err := os.MkdirTemp(base, safeName(id)+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Error("Executor", err, "remove scratch directory %s", dir)
		}
	}, nil
}

// artifactRef finds the image reference in a build result: a top-level
// "image" string, or "image" inside the export pipeline's entry.
func artifactRef(result map[string]any, exports []string) string {
	if s, ok := result[ImageKey].(string); ok && s != "" {
		return s
	}
	for _, name := range exports {
		if entry, ok := result[name].(map[string]any); ok {
			if s, ok := entry[ImageKey].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// artifactPath resolves a relative image reference against the export's
// directory in outputDir.
func artifactPath(image, outputDir string, exports []string) string {
	if filepath.IsAbs(image) {
		return image
	}
	if len(exports) > 0 {
		return filepath.Join(outputDir, exports[0], image)
	}
	return filepath.Join(outputDir, image)
}

// safeName maps an identifier onto a single path element.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
