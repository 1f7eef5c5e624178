// Package audit turns observed proxy calls into audit events and hands them to
// a broker without ever holding up the proxied request.
package audit

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/bufferproxy/internal/broker"
	"example.com/bufferproxy/internal/buffer"
	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/models"
)

var logg = logger.New()

const (
	DefaultQueueSize = 1024
	publishTimeout   = 5 * time.Second
	drainTimeout     = 5 * time.Second
)

// Recorder is a bounded queue in front of an AuditPublisher.
type Recorder struct {
	publisher broker.AuditPublisher
	queue     chan models.ProxyCall
	dropped   atomic.Int64
	published atomic.Int64
	now       func() time.Time
}

func NewRecorder(pub broker.AuditPublisher, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		publisher: pub,
		queue:     make(chan models.ProxyCall, size),
		now:       time.Now,
	}
}

// Observe matches buffer.Handler's hook.
func (r *Recorder) Observe(req *http.Request, c buffer.Call) {
	r.Record(models.ProxyCall{
		RequestID:        middleware.RequestIDFromContext(req.Context()),
		Method:           c.Method,
		Path:             c.Path,
		Route:            c.Route,
		Status:           c.Status,
		Duration:         c.Duration,
		CredentialSource: c.CredentialSource,
	})
}

// Record enqueues call and reports whether it was accepted. A full queue drops
// the call.
func (r *Recorder) Record(call models.ProxyCall) bool {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CalledAt.IsZero() {
		call.CalledAt = r.now().UTC()
	}

	select {
	case r.queue <- call:
		return true
	default:
		n := r.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			logg.Info("audit", "Audit queue full, dropped "+strconv.FormatInt(n, 10)+" calls so far")
		}
		return false
	}
}

// Run publishes queued calls until ctx is cancelled, then drains what is left
// within a short grace period.
func (r *Recorder) Run(ctx context.Context) {
	logg.Info("audit", "Audit recorder started")
	for {
		select {
		case call := <-r.queue:
			r.publish(call)
		case <-ctx.Done():
			r.drain()
			logg.Info("audit", "Audit recorder stopped")
			return
		}
	}
}

func (r *Recorder) drain() {
	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		select {
		case call := <-r.queue:
			r.publish(call)
		default:
			return
		}
	}
}

// publish is detached from Run's context so calls queued before shutdown
// still go out.
func (r *Recorder) publish(call models.ProxyCall) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, call); err != nil {
		logg.Error("audit", "Failed to publish proxy call", err)
		return
	}
	r.published.Add(1)
}

func (r *Recorder) Dropped() int64   { return r.dropped.Load() }
func (r *Recorder) Published() int64 { return r.published.Load() }
