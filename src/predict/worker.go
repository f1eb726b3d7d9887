package predict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("prediction queue is full")
	ErrStopped   = errors.New("dispatcher stopped")
)

type Predictor interface {
	Predict(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error)
}

// SettleFunc receives the outcome of every job handed to the dispatcher, exactly once.
type SettleFunc func(ctx context.Context, job Job, outcome Outcome)

// Job holds the attributes needed to perform unit of work.
type Job struct {
	SessionId   string
	Filename    string
	ContentType string
	Data        []byte
}

// NewWorker creates takes a numeric id and a channel w/ worker pool.
func NewWorker(id int, d *Dispatcher) Worker {
	return Worker{
		id:         id,
		jobQueue:   make(chan Job, 1),
		workerPool: d.workerPool,
		quitChan:   d.workersQuit,
		dispatcher: d,
	}
}

type Worker struct {
	id         int
	jobQueue   chan Job
	workerPool chan chan Job
	quitChan   chan struct{}
	dispatcher *Dispatcher
}

func (w Worker) start() {
	log.Debug("[Worker] Worker ", w.id, " starting")

	go func() {
		defer w.dispatcher.workersWg.Done()
		for {
			// Add my jobQueue to the worker pool.
			w.workerPool <- w.jobQueue

			select {
			case job := <-w.jobQueue:
				// Dispatcher has added a job to my jobQueue.
				w.process(job)

			case <-w.quitChan:
				// the dispatcher is gone, nothing can be queued for me anymore
				select {
				case job := <-w.jobQueue:
					w.dispatcher.abandon(job)
				default:
				}
				log.Debug("[Worker] Worker ", w.id, " stopping")
				return
			}
		}
	}()
}

func (w Worker) process(job Job) {
	var outcome Outcome
	defer func() {
		if r := recover(); r != nil {
			log.Error("[Worker] Predictor panicked: ", r)
			outcome = Failed(fmt.Errorf("predictor panicked: %v", r))
		}
		w.dispatcher.settle(context.Background(), job, outcome)
	}()

	res, err := w.dispatcher.predictor.Predict(w.dispatcher.ctx, job.Filename, job.ContentType, bytes.NewReader(job.Data))
	if err != nil {
		log.Debug("[Worker] Couldn't predict: ", err.Error())
		outcome = Failed(err)
		return
	}
	outcome = Succeeded(res)
}

// NewDispatcher creates, and returns a new Dispatcher object.
func NewDispatcher(predictor Predictor, settle SettleFunc, maxWorkers int, maxQueueSize int) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxQueueSize < 0 {
		maxQueueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobQueue:     make(chan Job, maxQueueSize),
		maxWorkers:   maxWorkers,
		workerPool:   make(chan chan Job, maxWorkers),
		quit:         make(chan struct{}),
		dispatchDone: make(chan struct{}),
		workersQuit:  make(chan struct{}),
		predictor:    predictor,
		settle:       settle,
		ctx:          ctx,
		cancel:       cancel,
	}
}

type Dispatcher struct {
	workerPool chan chan Job
	maxWorkers int
	jobQueue   chan Job

	predictor Predictor
	settle    SettleFunc
	ctx       context.Context
	cancel    context.CancelFunc

	mu           sync.RWMutex
	stopped      bool
	quit         chan struct{}
	dispatchDone chan struct{}
	workersQuit  chan struct{}
	workersWg    sync.WaitGroup
}

func (d *Dispatcher) Run() {
	d.workersWg.Add(d.maxWorkers)
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i+1, d)
		worker.start()
	}

	go d.dispatch()
}

// Submit queues a job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop settles every queued job as stopped, cancels the jobs in flight and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.quit)
	d.mu.Unlock()

	<-d.dispatchDone
	d.cancel()
	close(d.workersQuit)
	d.workersWg.Wait()
}

func (d *Dispatcher) dispatch() {
	defer close(d.dispatchDone)
	for {
		select {
		case job := <-d.jobQueue:
			select {
			case workerJobQueue := <-d.workerPool:
				workerJobQueue <- job
			case <-d.quit:
				d.abandon(job)
				d.drain()
				return
			}
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.jobQueue:
			d.abandon(job)
		default:
			return
		}
	}
}

func (d *Dispatcher) abandon(job Job) {
	log.Debug("[Dispatcher] Dropping job of session ", job.SessionId, " on shutdown")
	d.settle(context.Background(), job, Failed(ErrStopped))
}
