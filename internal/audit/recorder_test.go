package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/bufferproxy/internal/broker"
	"example.com/bufferproxy/internal/buffer"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/models"
	"example.com/bufferproxy/internal/store"
)

func TestRecorder_PublishesObservedCalls(t *testing.T) {
	pub := &broker.MockPublisher{}
	rec := NewRecorder(pub, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rec.Run(ctx); close(done) }()

	req := httptest.NewRequest("GET", "/api/buffer/user", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDCtxKey, "req-1"))
	rec.Observe(req, buffer.Call{
		Method: "GET", Path: "/api/buffer/user", Route: "user",
		Status: 200, CredentialSource: buffer.SourceEnvironment, Duration: 15 * time.Millisecond,
	})

	select {
	case <-pub.WaitFor(1):
	case <-time.After(5 * time.Second):
		t.Fatal("call was not published")
	}
	cancel()
	<-done

	calls := pub.Published()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Len(t, c.ID, 36)
	assert.Equal(t, "req-1", c.RequestID)
	assert.Equal(t, "user", c.Route)
	assert.Equal(t, 200, c.Status)
	assert.Equal(t, buffer.SourceEnvironment, c.CredentialSource)
	assert.Equal(t, 15*time.Millisecond, c.Duration)
	assert.False(t, c.CalledAt.IsZero())
	assert.Equal(t, int64(1), rec.Published())
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(&broker.MockPublisher{}, 2)

	assert.True(t, rec.Record(models.ProxyCall{Route: "user"}))
	assert.True(t, rec.Record(models.ProxyCall{Route: "user"}))
	assert.False(t, rec.Record(models.ProxyCall{Route: "user"}))
	assert.Equal(t, int64(1), rec.Dropped())
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	pub := &broker.MockPublisher{}
	rec := NewRecorder(pub, 4)
	for i := 0; i < 3; i++ {
		require.True(t, rec.Record(models.ProxyCall{Route: "profiles"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Len(t, pub.Published(), 3)
}

func TestRecorder_PublishErrorsAreNotFatal(t *testing.T) {
	pub := &broker.MockPublisher{Err: errors.New("broker down")}
	rec := NewRecorder(pub, 4)
	require.True(t, rec.Record(models.ProxyCall{Route: "user"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Empty(t, pub.Published())
	assert.Equal(t, int64(0), rec.Published())
}

// Through the Kafka publisher the calls end up in the store, the same path the
// worker takes in production.
func TestRecorder_KafkaIntoStore(t *testing.T) {
	st := store.NewMock()
	rec := NewRecorder(broker.NewKafkaPublisher(&broker.MockKafka{Store: st}), 4)
	require.True(t, rec.Record(models.ProxyCall{Route: "create_update", Status: 401}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	calls, err := st.RecentProxyCalls(time.Now().UTC().Format("2006-01-02"), 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "create_update", calls[0].Route)
	assert.Equal(t, 401, calls[0].Status)
}
