package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"example.com/bufferproxy/internal/broker"
	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/store"
)

var logg = logger.New()

// Worker consumes audit events from Kafka and stores them in Cassandra.
type Worker struct {
	store        store.StoreInterface
	reader       broker.KafkaReader
	workerCount  int
	jobQueueSize int

	stored atomic.Int64
	failed atomic.Int64
}

func New(st store.StoreInterface, reader broker.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        st,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run reads until ctx is cancelled, then lets the pool finish queued events.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", fmt.Sprintf("All workers stopped gracefully (stored %d, failed %d)", w.stored.Load(), w.failed.Load()))
}

func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// idle poll
				continue
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Error("worker", "Kafka read error, backing off", err)
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			if !waitWithContext(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}

		// Blocks while the pool is saturated so no read event is lost.
		select {
		case jobs <- msg.Value:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) processLoop(jobs <-chan []byte) {
	for data := range jobs {
		if err := w.handle(data); err != nil {
			w.failed.Add(1)
			continue
		}
		w.stored.Add(1)
	}
}

// handle stores one event. Malformed events are logged and skipped.
func (w *Worker) handle(data []byte) error {
	call, err := broker.DecodeProxyCall(data)
	if err != nil {
		logg.Error("worker", "Invalid audit event in Kafka message", err)
		return err
	}
	if err := w.store.AddProxyCall(call); err != nil {
		logg.Error("worker", "Failed to store proxy call", err)
		return err
	}
	return nil
}

func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the Cassandra session.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing Cassandra session")
	w.store.Close()
	return nil
}

// Stats returns how many events were stored and how many failed.
func (w *Worker) Stats() (stored, failed int64) {
	return w.stored.Load(), w.failed.Load()
}
