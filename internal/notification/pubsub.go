package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crono-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// EventType is the type attribute of every published notification event
const EventType = "activity.notification"

// Publisher publishes one payload and returns the server message id
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// TopicPublisher publishes to a Cloud Pub/Sub topic
type TopicPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewTopicPublisher(ctx context.Context, projectID, topicName, credentialsFile string) (*TopicPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &TopicPublisher{client: client, topic: client.Topic(topicName)}, nil
}

func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Close flushes pending publishes and releases the client
func (p *TopicPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// NotificationEvent is the JSON payload published per dispatched message
type NotificationEvent struct {
	Type       string     `json:"type"`
	Kind       Kind       `json:"kind"`
	OwnerID    string     `json:"owner_id"`
	ActivityID string     `json:"activity_id"`
	Subject    string     `json:"subject"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Recurring  bool       `json:"recurring"`
	SentAt     time.Time  `json:"sent_at"`
}

// PubSubNotifier emits a NotificationEvent for downstream consumers
type PubSubNotifier struct {
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewPubSubNotifier(publisher Publisher, now func() time.Time, l *zap.Logger) *PubSubNotifier {
	if now == nil {
		now = time.Now
	}
	return &PubSubNotifier{publisher: publisher, now: now, logger: logger.OrNop(l).Named("pubsub")}
}

func (n *PubSubNotifier) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	if n.publisher == nil {
		return DeliveryResult{Channel: ChannelPubSub, Simulated: true}, nil
	}

	data, err := json.Marshal(NotificationEvent{
		Type:       EventType,
		Kind:       msg.Kind,
		OwnerID:    msg.OwnerID,
		ActivityID: msg.ActivityID,
		Subject:    msg.Subject,
		DueDate:    msg.DueDate,
		Recurring:  msg.Recurring,
		SentAt:     n.now().UTC(),
	})
	if err != nil {
		return DeliveryResult{Channel: ChannelPubSub}, fmt.Errorf("marshal notification event: %w", err)
	}

	id, err := n.publisher.Publish(ctx, data, map[string]string{
		"type":     EventType,
		"owner_id": msg.OwnerID,
	})
	if err != nil {
		return DeliveryResult{Channel: ChannelPubSub}, fmt.Errorf("publish notification event: %w", err)
	}
	return DeliveryResult{Channel: ChannelPubSub, ID: id}, nil
}
