package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"

	"example.com/bufferproxy/internal/models"
	"example.com/bufferproxy/internal/store"
)

// MockKafka stands in for both ends of the audit topic. When Store is set,
// written calls land in it right away, as if the worker had consumed them.
type MockKafka struct {
	Store      *store.MockStore
	ShouldFail bool

	mu      sync.Mutex
	written []kafka.Message
	queue   []kafka.Message
}

func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.mu.Lock()
	m.written = append(m.written, messages...)
	m.mu.Unlock()

	if m.Store == nil {
		return nil
	}
	for _, msg := range messages {
		call, err := DecodeProxyCall(msg.Value)
		if err != nil {
			return err
		}
		if err := m.Store.AddProxyCall(call); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue makes messages available to ReadMessage.
func (m *MockKafka) Enqueue(messages ...kafka.Message) {
	m.mu.Lock()
	m.queue = append(m.queue, messages...)
	m.mu.Unlock()
}

// ReadMessage pops the next queued message, or fails when the queue is empty.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, nil
}

// Written returns a copy of every message written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

func (m *MockKafka) Close() error { return nil }

// MockPublisher records published calls in memory.
type MockPublisher struct {
	Err error

	mu    sync.Mutex
	calls []models.ProxyCall
	done  chan struct{}
	want  int
}

// WaitFor returns a channel closed once n calls have been published.
func (p *MockPublisher) WaitFor(n int) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = make(chan struct{})
	p.want = n
	if len(p.calls) >= n {
		close(p.done)
	}
	return p.done
}

func (p *MockPublisher) Publish(_ context.Context, call models.ProxyCall) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.calls = append(p.calls, call)
	if p.done != nil && len(p.calls) == p.want {
		close(p.done)
	}
	return nil
}

func (p *MockPublisher) Published() []models.ProxyCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ProxyCall(nil), p.calls...)
}

func (p *MockPublisher) Close() error { return nil }
