package worker

import "fmt"

type worker struct {
	id   int
	pool *jobChannelPool
	jobs chan Job
}

func newWorker(id int, pool *jobChannelPool) *worker {
	return &worker{id: id, pool: pool, jobs: make(chan Job)}
}

func (w *worker) start() {
	go func() {
		defer w.pool.retire(w.jobs)
		for {
			if !w.pool.release(w.jobs) {
				return
			}
			job := <-w.jobs
			if job.stop {
				return
			}
			w.run(job)
		}
	}()
}

func (w *worker) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("job panicked", "worker", w.id, "key", job.key, "panic", r)
			job.finish(fmt.Errorf("worker: job panicked: %v", r))
		}
	}()
	// the submitter gave up while the job was queued
	if err := job.ctx.Err(); err != nil {
		job.finish(err)
		return
	}
	job.finish(job.fn(job.ctx))
}
