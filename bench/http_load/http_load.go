package main

import (
	"context"
	"crypto/tls"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"
)

func main() {
	var (
		server      string
		token       string
		profileID   string
		duration    int
		concurrency int
		csvFile     string
		trimPercent float64
		certFile    string
		keyFile     string
	)

	flag.StringVar(&server, "server", "http://localhost:8080", "edge router base URL")
	flag.StringVar(&token, "token", "", "Buffer token sent as X-Buffer-Token; empty relies on the server fallback")
	flag.StringVar(&profileID, "profile", "", "profile id for the pending updates route; empty hits /user only")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS")
	flag.Parse()

	transport := &http.Transport{MaxIdleConnsPerHost: concurrency}
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load cert/key: %v", err))
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}

	base := strings.TrimRight(server, "/") + "/api/buffer"
	paths := []string{base + "/user", base + "/profiles"}
	if profileID != "" {
		paths = append(paths, base+"/profiles/"+profileID+"/updates/pending?count=10")
	}

	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var requests, successes, errors4xx, errors5xx, transportErrs int64
	latencySlices := make([][]float64, concurrency)

	fmt.Printf("Proxying for %ds with %d workers over %d routes...\n", duration, concurrency, len(paths))
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var local []float64

			for n := idx; time.Now().Before(stopTime); n++ {
				req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, paths[n%len(paths)], nil)
				if token != "" {
					req.Header.Set("X-Buffer-Token", token)
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt64(&requests, 1)
					atomic.AddInt64(&transportErrs, 1)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				local = append(local, time.Since(start).Seconds()*1000)
				atomic.AddInt64(&requests, 1)

				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&errors5xx, 1)
				}
			}
			latencySlices[idx] = local
		}(i)
	}
	wg.Wait()

	var all []float64
	for _, s := range latencySlices {
		all = append(all, s...)
	}
	sort.Float64s(all)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d  transport: %d\n",
		requests, successes, errors4xx, errors5xx, transportErrs)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		trimmedMean(all, trimPercent), percentile(all, 50), percentile(all, 90), percentile(all, 99))

	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range all {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// trimmedMean averages sorted data after dropping trimPercent from each end.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile interpolates the p-th percentile of sorted data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
