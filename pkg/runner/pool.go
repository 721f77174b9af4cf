package runner

import (
	"context"
	"iter"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ormasoftchile/imgtest/pkg/logging"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

// Pool runs test cases on a bounded number of workers.
type Pool struct {
	Executor *Executor
	// Jobs is the number of concurrent tests; values below 1 mean 1.
	Jobs int
}

// Run executes every test case yielded by cases. onResult, when non-nil,
// is called once per result in completion order and never concurrently.
// The returned results are in the order the cases were yielded.
//
// A test never fails the run: cancellation of ctx surfaces as timeout
// failures on the affected tests.
func (p *Pool) Run(ctx context.Context, cases iter.Seq[*testcase.TestCase], onResult func(*Result)) []*Result {
	jobs := max(p.Jobs, 1)

	var (
		mu      sync.Mutex
		results []*Result
	)
	g := new(errgroup.Group)
	g.SetLimit(jobs)

	i := 0
	for tc := range cases {
		idx := i
		i++
		// Claimed here, in corpus order, so the first of two duplicate IDs
		// is the one that runs.
		p.Executor.claim(tc)
		mu.Lock()
		results = append(results, nil)
		mu.Unlock()

		g.Go(func() error {
			res := p.Executor.Run(ctx, tc)
			mu.Lock()
			defer mu.Unlock()
			results[idx] = res
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	logging.Debug("Pool", "ran %d test(s) with %d job(s)", i, jobs)
	return results
}
