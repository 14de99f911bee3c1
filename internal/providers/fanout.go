// Package providers holds the fan-out strategies and executor pool shared by
// every provider implementation, plus the concrete providers themselves in
// their own subpackages.
package providers

import (
	"context"
	"runtime"
	"sync"

	"github.com/dispatchhq/notifyd/internal/domain"
	"golang.org/x/sync/semaphore"
)

// SendOneFunc is a single recipient's send call, already bound to a
// connected provider.
type SendOneFunc func(ctx context.Context, to domain.Recipient) (domain.SendResult, error)

// FanOut dispatches sendOne across recipients using the given strategy.
// Every strategy preserves recipient order in the result slice and never
// lets one recipient's failure cancel another's in-flight attempt.
func FanOut(ctx context.Context, strategy domain.BlockingStrategy, recipients []domain.Recipient, sendOne SendOneFunc) []domain.SendResult {
	switch strategy {
	case domain.BlockingExecutor:
		return fanOutExecutor(ctx, recipients, sendOne)
	case domain.BlockingThread:
		return fanOutThread(ctx, recipients, sendOne)
	default:
		return fanOutAsyncio(ctx, recipients, sendOne)
	}
}

// fanOutAsyncio launches one goroutine per recipient. Unlike errgroup.Group,
// it never cancels siblings when one recipient errors — a local WaitGroup is
// used deliberately instead of golang.org/x/sync/errgroup for that reason.
func fanOutAsyncio(ctx context.Context, recipients []domain.Recipient, sendOne SendOneFunc) []domain.SendResult {
	results := make([]domain.SendResult, len(recipients))
	var wg sync.WaitGroup
	wg.Add(len(recipients))
	for i, to := range recipients {
		go func(i int, to domain.Recipient) {
			defer wg.Done()
			result, err := sendOne(ctx, to)
			if err != nil && result.Err == nil {
				result.Err = err
			}
			result.Recipient = to
			results[i] = result
		}(i, to)
	}
	wg.Wait()
	return results
}

const executorPoolSize = 10

// fanOutExecutor bounds concurrency to min(executorPoolSize, len(recipients))
// using a semaphore, mirroring the teacher's processAllWorkspaces pattern of
// a semaphore-gated goroutine per unit of work.
func fanOutExecutor(ctx context.Context, recipients []domain.Recipient, sendOne SendOneFunc) []domain.SendResult {
	results := make([]domain.SendResult, len(recipients))

	size := executorPoolSize
	if len(recipients) < size {
		size = len(recipients)
	}
	if size == 0 {
		return results
	}
	sem := semaphore.NewWeighted(int64(size))

	var wg sync.WaitGroup
	wg.Add(len(recipients))
	for i, to := range recipients {
		i, to := i, to
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = domain.SendResult{Recipient: to, Err: err}
				return
			}
			defer sem.Release(1)

			result, err := sendOne(ctx, to)
			if err != nil && result.Err == nil {
				result.Err = err
			}
			result.Recipient = to
			results[i] = result
		}()
	}
	wg.Wait()
	return results
}

// fanOutThread spawns one OS-thread-pinned goroutine per recipient, for
// provider client libraries whose own read/write loop blocks the calling
// goroutine with no cooperative yield point (e.g. raw XMPP sockets).
func fanOutThread(ctx context.Context, recipients []domain.Recipient, sendOne SendOneFunc) []domain.SendResult {
	results := make([]domain.SendResult, len(recipients))
	var wg sync.WaitGroup
	wg.Add(len(recipients))
	for i, to := range recipients {
		i, to := i, to
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			defer wg.Done()

			result, err := sendOne(ctx, to)
			if err != nil && result.Err == nil {
				result.Err = err
			}
			result.Recipient = to
			results[i] = result
		}()
	}
	wg.Wait()
	return results
}
