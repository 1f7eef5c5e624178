package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/models"
)

var logg = logger.New()

type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Partition    int           // used by the leader connection of the writer
	WriteTimeout time.Duration
	ReadTimeout  time.Duration // bounds a single poll of the consumer group
	GroupID      string
}

func (c *KafkaConfig) withDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// RealKafkaWriter writes through a leader connection of one partition.
type RealKafkaWriter struct {
	conn   *kafka.Conn
	config KafkaConfig
}

func NewKafkaWriter(ctx context.Context, cfg KafkaConfig) (*RealKafkaWriter, error) {
	cfg.withDefaults()

	conn, err := kafka.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, fmt.Errorf("dial kafka leader for %s: %w", cfg.Topic, err)
	}
	return &RealKafkaWriter{conn: conn, config: cfg}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	if w.conn == nil {
		return errors.New("kafka connection is nil")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	_, err := w.conn.WriteMessages(messages...)
	return err
}

func (w *RealKafkaWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// RealKafkaReader consumes the audit topic as part of a consumer group.
type RealKafkaReader struct {
	reader  *kafka.Reader
	timeout time.Duration
}

func NewKafkaReader(cfg KafkaConfig) *RealKafkaReader {
	cfg.withDefaults()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return &RealKafkaReader{reader: r, timeout: cfg.ReadTimeout}
}

// ReadMessage returns context.DeadlineExceeded when nothing arrived within the
// read timeout, so callers can poll their own shutdown signal.
func (r *RealKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.reader.ReadMessage(ctx)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}

// KafkaPublisher publishes proxy calls keyed by call id.
type KafkaPublisher struct {
	writer KafkaWriter
}

func NewKafkaPublisher(w KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, call models.ProxyCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := EncodeProxyCall(call)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(call.ID),
		Value: value,
		Time:  call.CalledAt,
	}
	if err := p.writer.WriteMessages(msg); err != nil {
		logg.Error("broker", "Failed to publish proxy call to Kafka", err)
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
