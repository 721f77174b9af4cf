package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"
)

const lockRetryDelay = 100 * time.Millisecond

// checkpointLocks serializes builds that share checkpoint names. Within the
// process each name maps to a weighted semaphore; across processes a lock
// file per name under dir is held as well. Names are always acquired in
// sorted order.
type checkpointLocks struct {
	dir string

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newCheckpointLocks(dir string) *checkpointLocks {
	return &checkpointLocks{dir: dir, sems: make(map[string]*semaphore.Weighted)}
}

func (l *checkpointLocks) sem(name string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[name]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[name] = s
	}
	return s
}

// acquire locks every name and returns a function releasing them. On error
// nothing remains held.
func (l *checkpointLocks) acquire(ctx context.Context, names []string) (func(), error) {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var releases []func()
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, name := range sorted {
		s := l.sem(name)
		if err := s.Acquire(ctx, 1); err != nil {
			release()
			return nil, fmt.Errorf("wait for checkpoint %q: %w", name, err)
		}
		releases = append(releases, func() { s.Release(1) })

		if l.dir == "" {
			continue
		}
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			release()
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
		fl := flock.New(filepath.Join(l.dir, safeName(name)+".lock"))
		locked, err := fl.TryLockContext(ctx, lockRetryDelay)
		if err != nil || !locked {
			release()
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("lock checkpoint %q: %w", name, err)
		}
		releases = append(releases, func() { _ = fl.Unlock() })
	}
	return release, nil
}
