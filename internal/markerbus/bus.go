// Package markerbus carries marker diffs, observer feedback, and static
// frames over Kafka. Topics are namespaced per scene; message ordering is
// preserved per topic by keying every message with the namespace.
package markerbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"markerhub/internal/marker"
)

type Bus struct {
	namespace string
	brokers   []string
	writers   map[string]*kafka.Writer
}

// NewBus creates writers for the namespace's update, feedback, and frames
// topics. Readers are created per Subscribe call.
func NewBus(namespace string, brokers []string) *Bus {
	topics := []string{
		UpdateTopic(namespace),
		FeedbackTopic(namespace),
		FramesTopic(namespace),
	}
	writers := make(map[string]*kafka.Writer)
	for _, topic := range topics {
		writers[topic] = &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	return &Bus{
		namespace: namespace,
		brokers:   brokers,
		writers:   writers,
	}
}

// Namespace returns the scene namespace the bus was built for.
func (b *Bus) Namespace() string {
	return b.namespace
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) error {
	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}
	return b.writers[topic].WriteMessages(ctx, kafka.Message{
		Key:   []byte(b.namespace),
		Value: msg,
	})
}

// PublishUpdate publishes one diff on the update topic.
func (b *Bus) PublishUpdate(ctx context.Context, update marker.Update) error {
	if update.Namespace == "" {
		return fmt.Errorf("update missing namespace")
	}
	return b.publish(ctx, UpdateTopic(b.namespace), update)
}

// PublishFeedback publishes one observer event on the feedback topic.
func (b *Bus) PublishFeedback(ctx context.Context, fb marker.Feedback) error {
	if fb.MarkerName == "" {
		return fmt.Errorf("feedback missing marker_name")
	}
	return b.publish(ctx, FeedbackTopic(b.namespace), fb)
}

// PublishFrames publishes the current static frame set.
func (b *Bus) PublishFrames(ctx context.Context, frames []marker.Transform) error {
	return b.publish(ctx, FramesTopic(b.namespace), frames)
}

// SubscribeUpdates consumes the update topic until ctx is cancelled.
func (b *Bus) SubscribeUpdates(ctx context.Context, groupID string, handler func(marker.Update)) {
	subscribe(ctx, b.brokers, UpdateTopic(b.namespace), groupID, handler)
}

// SubscribeFeedback consumes the feedback topic until ctx is cancelled.
func (b *Bus) SubscribeFeedback(ctx context.Context, groupID string, handler func(marker.Feedback)) {
	subscribe(ctx, b.brokers, FeedbackTopic(b.namespace), groupID, handler)
}

func subscribe[T any](ctx context.Context, brokers []string, topic, groupID string, handler func(T)) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  pollFrequency(),
	})
	defer reader.Close()
	log.Printf("Subscribed to %s as %s", topic, groupID)
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				log.Printf("Subscription to %s stopped: %v", topic, ctx.Err())
				return
			default:
				log.Printf("Read error on %s: %v", topic, err)
			}
			continue
		}
		var msg T
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Printf("Parse error on %s key=%s: %v", topic, string(m.Key), err)
			continue
		}
		handler(msg)
	}
}

func pollFrequency() time.Duration {
	pollFreqStr := os.Getenv("KAFKA_POLL_FREQUENCY_MS")
	if pollFreqStr == "" {
		pollFreqStr = "1000"
	}
	pollFreqMs, err := strconv.Atoi(pollFreqStr)
	if err != nil {
		log.Printf("Invalid KAFKA_POLL_FREQUENCY_MS value: %v, using default 1000ms", err)
		pollFreqMs = 1000
	}
	return time.Millisecond * time.Duration(pollFreqMs)
}

// Close closes every topic writer.
func (b *Bus) Close() error {
	var errs []error
	for topic, writer := range b.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer for topic %s: %w", topic, err))
		}
	}
	if len(errs) > 0 {
		for _, err := range errs[1:] {
			log.Printf("Additional close error: %v", err)
		}
		return errs[0]
	}
	return nil
}
