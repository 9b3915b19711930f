// Package workpool fans verification tasks out over a fixed set of workers.
// Each task is independent, ordering of results is up to the consumer.
package workpool

import (
	"context"
	"sync"
)

type Task struct {
	Ctx   context.Context
	Email string
}

type Pool struct {
	wg    sync.WaitGroup
	tasks chan Task
}

// Start launches workers goroutines, each draining the task channel through
// fn. Call Submit to feed it and Wait to drain and join.
func (p *Pool) Start(workers int, fn func(tasks <-chan Task)) {
	p.tasks = make(chan Task)
	p.wg.Add(workers)
	for i := workers; i > 0; i-- {
		go func() {
			defer p.wg.Done()
			fn(p.tasks)
		}()
	}
}

func (p *Pool) Submit(t Task) {
	p.tasks <- t
}

func (p *Pool) Wait() {
	close(p.tasks)
	p.wg.Wait()
}
