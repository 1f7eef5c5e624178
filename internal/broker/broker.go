// Package broker carries audit events from the edge server to the audit worker
// over Kafka, or to RabbitMQ for deployments without a worker.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/bufferproxy/internal/models"
)

// AuditPublisher delivers one proxy call to the audit sink.
type AuditPublisher interface {
	Publish(ctx context.Context, call models.ProxyCall) error
	Close() error
}

var ErrInvalidEvent = errors.New("invalid proxy call event")

// EncodeProxyCall is the wire format shared by every sink.
func EncodeProxyCall(call models.ProxyCall) ([]byte, error) {
	if call.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	return json.Marshal(call)
}

// DecodeProxyCall parses an event written by EncodeProxyCall.
func DecodeProxyCall(data []byte) (models.ProxyCall, error) {
	var call models.ProxyCall
	if err := json.Unmarshal(data, &call); err != nil {
		return call, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if call.ID == "" || call.CalledAt.IsZero() {
		return call, fmt.Errorf("%w: missing id or timestamp", ErrInvalidEvent)
	}
	return call, nil
}
