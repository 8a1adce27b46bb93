package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"

	"github.com/grantforge/backend/config"
)

// Job is one queued generation run.
type Job struct {
	RunID      uint
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
}

// RunExecutor executes one generation run end to end. The executor owns
// run status bookkeeping; the orchestrator never retries an error
// return.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID uint) error
}

// Orchestrator feeds queued runs into a bounded worker pool. Retries
// apply to pool submission only: a run that started and failed is
// terminal, a new run is the retry.
type Orchestrator struct {
	runQueue    *jobQueue
	retryQueue  *jobQueue
	retryTicker *time.Ticker

	pool *ants.Pool

	executor   RunExecutor
	maxRetries int
	runTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	activeCancellations map[uint]context.CancelFunc
	cancelMutex         sync.Mutex
}

var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrQueueFull           = errors.New("run queue is full")
)

const defaultRunTimeout = 30 * time.Minute

func New(cfg config.WorkerConfig, executor RunExecutor) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	pool, err := ants.NewPool(poolSize,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(queueSize),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	return &Orchestrator{
		runQueue:            newJobQueue(queueSize),
		retryQueue:          newJobQueue(queueSize),
		retryTicker:         time.NewTicker(500 * time.Millisecond),
		pool:                pool,
		executor:            executor,
		maxRetries:          maxRetries,
		runTimeout:          defaultRunTimeout,
		activeCancellations: make(map[uint]context.CancelFunc),
		ctx:                 ctx,
		cancel:              cancel,
	}, nil
}

func (o *Orchestrator) Start() {
	go o.dispatchLoop()
	go o.processRetryQueue()
}

// Stop shuts the orchestrator down: queued runs that never started are
// discarded (startup cleanup marks them failed on next boot), running
// ones get until the run timeout to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("orchestrator stopping")

		o.cancel()
		o.runQueue.Close()
		o.retryQueue.Close()

		if dropped := o.runQueue.drain() + o.retryQueue.drain(); dropped > 0 {
			klog.Warningf("discarded %d queued runs on shutdown", dropped)
		}

		if running := o.pool.Running(); running > 0 {
			klog.V(6).Infof("waiting for %d running generations to complete", running)
		}
		if err := o.pool.ReleaseTimeout(o.runTimeout + 5*time.Minute); err != nil {
			klog.Warningf("shutdown timeout: some runs may have been interrupted: %v", err)
		}

		klog.V(6).Infof("orchestrator stopped")
	})
}

// EnqueueRun queues one run for execution.
func (o *Orchestrator) EnqueueRun(runID uint) error {
	select {
	case <-o.ctx.Done():
		return ErrOrchestratorStopped
	default:
	}

	job := &Job{
		RunID:      runID,
		EnqueuedAt: time.Now(),
		MaxRetries: o.maxRetries,
		Timeout:    o.runTimeout,
	}
	if err := o.runQueue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("run queue full: runID=%d", runID)
		}
		return err
	}
	klog.V(6).Infof("run enqueued: runID=%d", runID)
	return nil
}

func (o *Orchestrator) registerCancel(runID uint, cancel context.CancelFunc) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	o.activeCancellations[runID] = cancel
}

func (o *Orchestrator) unregisterCancel(runID uint) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	delete(o.activeCancellations, runID)
}

// CancelRun cancels the context of an executing run. Returns false when
// the run is not currently executing; the caller handles queued and
// pending runs through status updates alone.
func (o *Orchestrator) CancelRun(runID uint) bool {
	o.cancelMutex.Lock()
	cancel, ok := o.activeCancellations[runID]
	o.cancelMutex.Unlock()
	if !ok {
		return false
	}

	klog.V(6).Infof("cancelling run: runID=%d", runID)
	cancel()
	return true
}

func (o *Orchestrator) dispatchLoop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		default:
			job, ok := o.runQueue.Dequeue()
			if !ok {
				return
			}
			o.tryDispatch(job)
		}
	}
}

func (o *Orchestrator) processRetryQueue() {
	defer o.retryTicker.Stop()
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("retry queue loop panic recovered: %v", r)
		}
	}()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.retryTicker.C:
			for range 10 {
				job, ok := o.retryQueue.Dequeue()
				if !ok {
					break
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							klog.Errorf("retry dispatch panic: runID=%d, err=%v", job.RunID, r)
						}
					}()
					o.tryDispatch(job)
				}()
			}
		}
	}
}

// tryDispatch submits the job to the pool; on submission failure the job
// goes to the retry queue until its retry budget runs out.
func (o *Orchestrator) tryDispatch(job *Job) {
	err := o.pool.Submit(func() {
		o.executeJob(job)
	})
	if err == nil {
		return
	}
	klog.Errorf("pool submission failed: runID=%d, err=%v", job.RunID, err)

	if job.RetryCount >= job.MaxRetries {
		klog.Warningf("submission retries exhausted, dropping run: runID=%d, retry=%d/%d",
			job.RunID, job.RetryCount, job.MaxRetries)
		return
	}
	job.RetryCount++
	if err := o.retryQueue.Enqueue(job); err != nil {
		klog.Errorf("retry enqueue failed: runID=%d, err=%v", job.RunID, err)
	}
}

// executeJob runs one job to completion. Generation errors are terminal:
// the executor has already recorded the failure, so nothing is retried
// here.
func (o *Orchestrator) executeJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("run panic recovered: runID=%d, err=%v", job.RunID, r)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()
	runCtx, manualCancel := context.WithCancel(ctx)
	defer manualCancel()

	o.registerCancel(job.RunID, manualCancel)
	defer o.unregisterCancel(job.RunID)

	waited := time.Since(job.EnqueuedAt)
	klog.V(6).Infof("run starting: runID=%d, queued for %v", job.RunID, waited.Round(time.Millisecond))

	if err := o.executor.ExecuteRun(runCtx, job.RunID); err != nil {
		klog.Warningf("run finished with error: runID=%d, err=%v", job.RunID, err)
		return
	}
	klog.V(6).Infof("run completed: runID=%d", job.RunID)
}

// QueueStatus is a point-in-time snapshot of the pool and queues.
type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	RetryLength   int `json:"retry_length"`
	ActiveWorkers int `json:"active_workers"`
	ActiveRuns    int `json:"active_runs"`
}

func (o *Orchestrator) GetQueueStatus() *QueueStatus {
	o.cancelMutex.Lock()
	active := len(o.activeCancellations)
	o.cancelMutex.Unlock()

	return &QueueStatus{
		QueueLength:   o.runQueue.Len(),
		RetryLength:   o.retryQueue.Len(),
		ActiveWorkers: o.pool.Running(),
		ActiveRuns:    active,
	}
}

// jobQueue is a bounded FIFO that rejects new jobs when full.
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrOrchestratorStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

// Dequeue blocks until a job arrives or the queue closes. After close it
// returns false; remaining items are left for drain.
func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// drain discards everything still queued and reports the count.
func (q *jobQueue) drain() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
