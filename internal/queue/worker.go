package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	pollTimeout = time.Second
	// how often due retries are moved back onto the queue
	defaultPromoteInterval = 5 * time.Second
)

// Worker processes jobs from a queue
type Worker struct {
	redis           *RedisClient
	queue           string
	handler         JobHandler
	numWorkers      int
	promoteInterval time.Duration
	wg              sync.WaitGroup
	quit            chan struct{}
}

// NewWorker creates a new worker
func NewWorker(redis *RedisClient, queue string, handler JobHandler, numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Worker{
		redis:           redis,
		queue:           queue,
		handler:         handler,
		numWorkers:      numWorkers,
		promoteInterval: defaultPromoteInterval,
		quit:            make(chan struct{}),
	}
}

// Start starts the worker
func (w *Worker) Start() {
	log.Printf("Starting %d workers for queue %s", w.numWorkers, w.queue)

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	w.wg.Add(1)
	go w.promoteDelayed()
}

// Stop stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	log.Printf("Stopping workers for queue %s", w.queue)
	close(w.quit)
	w.wg.Wait()
}

// promoteDelayed requeues retries once their backoff has passed
func (w *Worker) promoteDelayed() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.quit:
			return
		case now := <-ticker.C:
			if _, err := w.redis.PromoteDelayed(context.Background(), w.queue, now); err != nil {
				log.Printf("Error promoting delayed jobs for queue %s: %v", w.queue, err)
			}
		}
	}
}

// process processes jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()

	log.Printf("Worker %d for queue %s started", workerID, w.queue)
	ctx := context.Background()

	for {
		select {
		case <-w.quit:
			log.Printf("Worker %d for queue %s stopped", workerID, w.queue)
			return
		default:
		}

		job, err := w.redis.Dequeue(ctx, w.queue, pollTimeout)
		if err != nil {
			log.Printf("Error dequeueing job: %v", err)
			time.Sleep(pollTimeout)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.handler(ctx, *job); err != nil {
			log.Printf("Error processing job %s (attempt %d): %v", job.ID, job.RetryCount+1, err)
			requeued, retryErr := w.redis.Retry(ctx, job, err)
			if retryErr != nil {
				log.Printf("Error rescheduling job %s: %v", job.ID, retryErr)
			} else if !requeued {
				log.Printf("Job %s exceeded maximum retry attempts (%d)", job.ID, job.MaxRetries)
			}
		}
	}
}
