package leave

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/warp/leave-ledger/generic"
)

// BatchFailure is one employee/leave type a bulk run could not process.
type BatchFailure struct {
	EmployeeID  generic.EmployeeID
	LeaveTypeID generic.LeaveTypeID
	Error       string
}

// parallelMap runs fn for every item on a bounded ants pool. Each call
// writes only its own slot of the result slice, so callers reduce the
// results after the pool drains instead of sharing counters.
func parallelMap[T, R any](ctx context.Context, size int, items []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = fn(ctx, items[i])
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit batch task: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
