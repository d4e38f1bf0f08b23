// Package worker runs keyed jobs on an elastic pool. Keys take turns so one busy key cannot
// starve the others.
package worker

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

type Dispatcher struct {
	pool   *jobChannelPool
	jobs   chan Job
	logger *slog.Logger

	mu        sync.Mutex
	queues    map[string]*keyQueue
	ready     *list.List // keys with pending jobs, least recently served first
	positions map[string]*list.Element

	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(opts.MinWorkers, opts.MaxWorkers, opts.IdleTimeout, logger),
		jobs:      make(chan Job, opts.QueueSize),
		logger:    logger,
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
	}
	for i := 0; i < opts.MinWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.run()
	return d
}

// Submit queues fn under key and waits for its result. A full queue fails fast with ErrDispatcherBusy.
// If ctx ends first Submit returns ctx.Err() and the job is skipped if it has not started.
func (d *Dispatcher) Submit(ctx context.Context, key string, fn func(context.Context) error) error {
	select {
	case <-d.quit:
		return ErrClosed
	default:
	}
	job := Job{key: key, ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case d.jobs <- job:
	default:
		return ErrDispatcherBusy
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.jobs:
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.jobs:
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.key] = d.ready.PushBack(job.key)
}

// dispatchOne hands the next job of the least recently served key to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	ch, ok := d.pool.acquire()
	if !ok {
		job.finish(ErrClosed)
		return false
	}
	d.logger.Debug("assign job", "key", key, "worker", d.pool.workerID(ch))
	ch <- job
	return true
}

// Cancel drops the pending jobs of key. Running jobs are not interrupted.
func (d *Dispatcher) Cancel(key string) {
	d.mu.Lock()
	q := d.queues[key]
	delete(d.queues, key)
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
	d.mu.Unlock()
	if q != nil {
		for _, job := range q.jobs {
			job.finish(context.Canceled)
		}
	}
}

// Close stops dispatching and fails pending jobs with ErrClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()

		d.mu.Lock()
		queues := d.queues
		d.queues = make(map[string]*keyQueue)
		d.ready.Init()
		d.positions = make(map[string]*list.Element)
		d.mu.Unlock()
		for _, q := range queues {
			for _, job := range q.jobs {
				job.finish(ErrClosed)
			}
		}
		for {
			select {
			case job := <-d.jobs:
				job.finish(ErrClosed)
			default:
				return
			}
		}
	})
}

type Stats struct {
	Workers int `json:"workers"`
	Idle    int `json:"idle"`
	Queued  int `json:"queued"`
}

func (d *Dispatcher) Stats() Stats {
	workers, idle := d.pool.stats()
	d.mu.Lock()
	queued := len(d.jobs)
	for _, q := range d.queues {
		queued += len(q.jobs)
	}
	d.mu.Unlock()
	return Stats{Workers: workers, Idle: idle, Queued: queued}
}
