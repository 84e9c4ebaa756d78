package jobs

import (
	"context"
	"log"
	"time"
)

const defaultPollInterval = 2 * time.Second

// JobProcessor runs one batch of pending work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a poll interval. Wake triggers an extra
// pass without waiting for the next tick.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	wake         chan struct{}
	stop         chan struct{}
	done         chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called. The first pass runs
// immediately.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	log.Printf("worker: polling every %v", w.pollInterval)
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("worker: context cancelled")
			return
		case <-w.stop:
			log.Println("worker: stop requested")
			return
		case <-w.wake:
			w.runOnce(ctx)
			ticker.Reset(w.pollInterval)
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Wake schedules a pass. Calls made while one is already pending coalesce.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("worker: pass failed: %v", err)
	}
}

// Stop waits for the running pass to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	log.Println("worker: stopped")
}
