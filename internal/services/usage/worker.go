package usage

import (
	"context"
	"sync"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker records usage rows off the request path. The transcription
// continuation submits here so accounting latency never adds to pipeline
// latency.
type Worker struct {
	tracker  *Tracker
	tasks    chan recordTask
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

type recordTask struct {
	params    models.RecordUsageParams
	requestID string
}

// NewWorker starts poolSize goroutines draining a buffer of bufferSize tasks.
func NewWorker(tracker *Tracker, poolSize, bufferSize int) *Worker {
	w := &Worker{
		tracker: tracker,
		tasks:   make(chan recordTask, bufferSize),
		stopped: make(chan struct{}),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit queues one usage row for recording. When the buffer is full the task
// is recorded inline instead of dropped: the ledger must stay complete.
func (w *Worker) Submit(params models.RecordUsageParams, requestID string) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] usage worker stopped, recording inline", requestID)
		w.tracker.Record(context.Background(), params)
		return
	case w.tasks <- recordTask{params: params, requestID: requestID}:
	default:
		fiberlog.Warnf("[%s] usage recording buffer full, recording inline", requestID)
		w.tracker.Record(context.Background(), params)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case task := <-w.tasks:
					w.tracker.Record(context.Background(), task.params)
				default:
					return
				}
			}
		case task := <-w.tasks:
			w.tracker.Record(context.Background(), task.params)
		}
	}
}

// Stop gracefully stops the worker pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.wg.Wait()
	})
}
