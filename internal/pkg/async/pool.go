// Package async runs a batch of named read queries on a bounded worker
// pool and collects their results by name.
package async

import (
	"context"
	"sync"
)

// Task is one named unit of work.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result carries a task's outcome, keyed by the task name.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool fans a task batch out over a fixed number of workers.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs all tasks and returns their results indexed by name.
// When the context is cancelled mid-batch the map holds whatever
// completed before cancellation.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	pending := make(chan Task)
	completed := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case task, ok := <-pending:
					if !ok {
						return
					}
					data, err := task.Execute()
					select {
					case completed <- Result{Name: task.Name, Data: data, Err: err}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(pending)
		for _, task := range tasks {
			select {
			case pending <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make(map[string]Result, len(tasks))
	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-completed:
			results[result.Name] = result
		case <-ctx.Done():
			return results
		}
	}

	wg.Wait()
	close(completed)

	return results
}
