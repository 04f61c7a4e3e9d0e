package engine

import (
	"context"
	"sync"

	"github.com/roach88/registrar/internal/model"
)

// Runner serializes inputs to an Engine through a FIFO queue drained by a
// single goroutine. Callers block on their own reply, never on each other.
type Runner struct {
	engine *Engine
	queue  *requestQueue

	startOnce sync.Once
	done      chan struct{}
}

// NewRunner wraps e. Nothing else may call e directly once the runner starts.
func NewRunner(e *Engine) *Runner {
	return &Runner{
		engine: e,
		queue:  newRequestQueue(),
		done:   make(chan struct{}),
	}
}

// Start runs the loop in a new goroutine until ctx is cancelled or Stop is
// called.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.done)
			_ = r.run(ctx)
		}()
	})
}

// run is the single writer. It returns when the queue is closed and empty,
// or when ctx is cancelled.
func (r *Runner) run(ctx context.Context) error {
	log := r.engine.log
	log.Info("runner starting")

	for {
		req, ok := r.queue.TryDequeue()
		if ok {
			step, err := r.engine.Apply(req.ctx, req.input)
			if err != nil {
				log.Error("input failed", "input", req.input.Name(), "error", err)
			}
			req.reply <- reply{step: step, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("runner stopping: context cancelled")
			stopAll(r.queue.Close())
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if r.queue.Len() == 0 && r.queue.Closed() {
				log.Info("runner stopping: queue closed")
				return nil
			}
		}
	}
}

// Submit queues in and waits for its step.
func (r *Runner) Submit(ctx context.Context, in Input) (model.Step, error) {
	req := request{ctx: ctx, input: in, reply: make(chan reply, 1)}
	if !r.queue.Enqueue(req) {
		return nil, ErrRunnerStopped
	}
	select {
	case rep := <-req.reply:
		return rep.step, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes the queue, answers anything still queued with
// ErrRunnerStopped and waits for the loop to exit if it was started.
func (r *Runner) Stop() {
	stopAll(r.queue.Close())
	r.startOnce.Do(func() { close(r.done) })
	<-r.done
}

func stopAll(pending []request) {
	for _, req := range pending {
		req.reply <- reply{err: ErrRunnerStopped}
	}
}
