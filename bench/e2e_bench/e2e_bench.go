package main

import (
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/models"
)

type auditPage struct {
	Day   string             `json:"day"`
	Calls []models.ProxyCall `json:"calls"`
}

type sentCall struct {
	RequestID string
	Sent      time.Time
}

// Measures how long a proxied call takes to show up in the admin audit trail:
// edge router -> recorder -> Kafka -> worker -> Cassandra -> /api/admin/audit.
func main() {
	var (
		server      string
		token       string
		secret      string
		subject     string
		calls       int
		concurrency int
		pollTimeout int
		certFile    string
		keyFile     string
	)

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.StringVar(&token, "token", "", "Buffer token sent as X-Buffer-Token")
	flag.StringVar(&secret, "admin-secret", os.Getenv("ADMIN_JWT_SECRET"), "secret used to sign the admin token")
	flag.StringVar(&subject, "subject", "e2e-bench", "admin token subject")
	flag.IntVar(&calls, "calls", 100, "number of proxied calls")
	flag.IntVar(&concurrency, "c", 20, "concurrency for proxied calls")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for a call to appear in the audit trail")
	flag.StringVar(&certFile, "cert", "", "client certificate for mTLS")
	flag.StringVar(&keyFile, "key", "", "client key for mTLS")
	flag.Parse()

	if secret == "" {
		fmt.Println("admin secret is required (--admin-secret or ADMIN_JWT_SECRET)")
		os.Exit(1)
	}
	adminToken, err := middleware.IssueAdminToken([]byte(secret), subject, time.Hour)
	if err != nil {
		fmt.Printf("issue admin token: %v\n", err)
		os.Exit(1)
	}

	transport := &http.Transport{}
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			panic(fmt.Sprintf("failed to load cert/key: %v", err))
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}
	server = strings.TrimRight(server, "/")
	ctx := context.Background()

	// 1) Proxied calls, each tagged with its own request id.
	fmt.Printf("Sending %d proxied calls with concurrency %d...\n", calls, concurrency)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	sentCh := make(chan sentCall, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			reqID := uuid.NewString()
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server+"/api/buffer/user", nil)
			req.Header.Set(middleware.HeaderRequestID, reqID)
			if token != "" {
				req.Header.Set("X-Buffer-Token", token)
			}

			sent := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("proxy error: %v\n", err)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			sentCh <- sentCall{RequestID: reqID, Sent: sent}
		}()
	}
	wg.Wait()
	close(sentCh)

	pending := make(map[string]time.Time, calls)
	for sc := range sentCh {
		pending[sc.RequestID] = sc.Sent
	}

	// 2) Poll the audit trail until every call is visible or the deadline passes.
	fmt.Printf("Waiting for %d calls in the audit trail...\n", len(pending))
	var latencies []float64
	deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
	auditURL := server + "/api/admin/audit?route=user&limit=1000&day=" + time.Now().UTC().Format(time.DateOnly)

	for len(pending) > 0 && time.Now().Before(deadline) {
		page, err := fetchAudit(ctx, client, auditURL, adminToken)
		if err != nil {
			fmt.Printf("audit poll error: %v\n", err)
			time.Sleep(200 * time.Millisecond)
			continue
		}
		now := time.Now()
		for _, c := range page.Calls {
			if sent, ok := pending[c.RequestID]; ok {
				latencies = append(latencies, now.Sub(sent).Seconds()*1000)
				delete(pending, c.RequestID)
			}
		}
		time.Sleep(200 * time.Millisecond)
	}

	// 3) Stats and CSV.
	if len(latencies) == 0 {
		fmt.Println("No calls reached the audit trail.")
		return
	}
	sort.Float64s(latencies)
	trimPercent := 1.0
	fmt.Printf("Audit delivery (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f missing=%d\n",
		len(latencies), trimmedMean(latencies, trimPercent),
		trimmedPercentile(latencies, 50, trimPercent),
		trimmedPercentile(latencies, 90, trimPercent),
		trimmedPercentile(latencies, 99, trimPercent),
		len(pending))

	f, err := os.Create("e2e_latencies.csv")
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	w := csv.NewWriter(f)
	w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	w.Flush()
	f.Close()
	fmt.Println("Saved e2e_latencies.csv")
}

func fetchAudit(ctx context.Context, client *http.Client, url, adminToken string) (*auditPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit status %d", resp.StatusCode)
	}

	var page auditPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// trimmedMean averages sorted data after dropping trimPercent from each end.
func trimmedMean(data []float64, trimPercent float64) float64 {
	data = trimmed(data, trimPercent)
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	return percentile(trimmed(data, trimPercent), p)
}

func trimmed(data []float64, trimPercent float64) []float64 {
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	return data[trim : len(data)-trim]
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
