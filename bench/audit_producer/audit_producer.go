package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"
	"github.com/segmentio/kafka-go"
	flag "github.com/spf13/pflag"

	"example.com/bufferproxy/internal/broker"
	"example.com/bufferproxy/internal/buffer"
	"example.com/bufferproxy/internal/models"
)

var statuses = []int{http.StatusOK, http.StatusOK, http.StatusOK, http.StatusUnauthorized, http.StatusNotFound, http.StatusBadGateway}

// fakeCall builds a plausible audit event for one of the proxied routes.
func fakeCall(rng *rand.Rand, requestID string) models.ProxyCall {
	rt := buffer.Routes[rng.Intn(len(buffer.Routes))]
	path := "/api/buffer"
	for _, seg := range rt.Pattern {
		if seg == ":id" {
			seg = fmt.Sprintf("profile-%d", rng.Intn(50))
		}
		path += "/" + seg
	}
	return models.ProxyCall{
		ID:               gocql.TimeUUID().String(),
		RequestID:        requestID,
		Method:           rt.Method,
		Path:             path,
		Route:            rt.Name,
		Status:           statuses[rng.Intn(len(statuses))],
		Duration:         time.Duration(20+rng.Intn(400)) * time.Millisecond,
		CredentialSource: buffer.SourceBufferHeader,
		CalledAt:         time.Now().UTC(),
	}
}

func main() {
	var (
		total      int
		batchSize  int
		numWorkers int
		brokerAddr string
		topic      string
	)
	flag.IntVar(&total, "total", 100000, "number of proxy call events to send")
	flag.IntVar(&batchSize, "batch", 100, "messages per write")
	flag.IntVar(&numWorkers, "workers", 4, "parallel producers")
	flag.StringVar(&brokerAddr, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "buffer-proxy-calls", "audit topic")
	flag.Parse()

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{brokerAddr},
		Topic:   topic,
		Async:   true,
	})
	defer w.Close()

	runID := gocql.TimeUUID().String()
	start := time.Now()

	var successCount, failCount uint64
	jobs := make(chan int, total)
	var wg sync.WaitGroup

	flush := func(batch []kafka.Message) {
		if err := w.WriteMessages(context.Background(), batch...); err != nil {
			atomic.AddUint64(&failCount, uint64(len(batch)))
			fmt.Printf("write error: %v\n", err)
			return
		}
		atomic.AddUint64(&successCount, uint64(len(batch)))
	}

	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			batch := make([]kafka.Message, 0, batchSize)

			for i := range jobs {
				call := fakeCall(rng, fmt.Sprintf("%s-%d", runID, i))
				v, err := broker.EncodeProxyCall(call)
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("encode error: %v\n", err)
					continue
				}
				batch = append(batch, kafka.Message{Key: []byte(call.ID), Value: v})

				if len(batch) >= batchSize {
					flush(batch)
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				flush(batch)
			}
		}(time.Now().UnixNano() + int64(wID))
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Run: %s\n", runID)
	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
