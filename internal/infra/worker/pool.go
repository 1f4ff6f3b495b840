package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("worker queue full")

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Warn().Err(err).Int("worker", id).Msg("task failed")
					}
				}
			}
		}(i)
	}
}

// Stop is safe to call more than once.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues task without blocking and returns ErrQueueFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait enqueues task, waiting for room until ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return errors.New("worker pool stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}
