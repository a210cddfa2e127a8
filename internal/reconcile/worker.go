// internal/reconcile/worker.go
package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/eventlistener"
)

type job struct {
	event eventlistener.TradeEvent
	due   time.Time
}

// worker - однопоточная очередь одного mint.
type worker struct {
	mint string
	jobs chan job
	done chan struct{}
}

func newWorker(mint string, size int) *worker {
	return &worker{
		mint: mint,
		jobs: make(chan job, size),
		done: make(chan struct{}),
	}
}

// runWorker обрабатывает очередь mint, пока есть работа. После IdleTimeout
// без событий воркер удаляет себя из таблицы.
func (r *Reconciler) runWorker(ctx context.Context, w *worker) {
	defer r.wg.Done()
	defer close(w.done)

	logger := r.logger.With(zap.String("mint", w.mint))
	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			r.forget(w)
			return
		case j := <-w.jobs:
			if !r.waitUntil(ctx, j.due) {
				r.forget(w)
				return
			}
			if err := r.Reconcile(ctx, j.event); err != nil {
				logger.Error("Reconciliation failed",
					zap.String("signature", j.event.Signature),
					zap.Error(err))
			}
			resetTimer(idle, r.opts.IdleTimeout)
		case <-idle.C:
			r.mu.Lock()
			if len(w.jobs) == 0 {
				delete(r.workers, w.mint)
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			idle.Reset(r.opts.IdleTimeout)
		}
	}
}

func (r *Reconciler) forget(w *worker) {
	r.mu.Lock()
	if r.workers[w.mint] == w {
		delete(r.workers, w.mint)
	}
	r.mu.Unlock()
}

// waitUntil ждет наступления due; false при отмене контекста.
func (r *Reconciler) waitUntil(ctx context.Context, due time.Time) bool {
	d := due.Sub(r.now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
