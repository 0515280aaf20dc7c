// Package notify publishes run summaries to Google Cloud Pub/Sub so
// downstream consumers can react to finished pipeline stages.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// Publisher emits a JSON payload after a stage run. Implementations must
// tolerate being called with any JSON-marshalable payload.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
	Close() error
}

// PubSub publishes to a single Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub connects to Pub/Sub and binds the topic. The topic must
// already exist; creation is an infrastructure concern.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

// Publish marshals the payload to JSON and publishes it, blocking until
// the server acknowledges. Returns the server-assigned message id.
func (p *PubSub) Publish(ctx context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	p.logger.Info("Published run summary",
		zap.String("topic", p.topic.ID()),
		zap.String("message_id", id))
	return id, nil
}

// Close flushes the topic and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// Noop is used when no Pub/Sub topic is configured. Stages always have a
// publisher to call; this one just drops the payload.
type Noop struct{}

func (Noop) Publish(context.Context, any) (string, error) { return "", nil }
func (Noop) Close() error                                 { return nil }
