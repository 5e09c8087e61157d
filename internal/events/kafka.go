package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/turbolytics/patcher/internal/config"
)

// Kafka publishes events to a topic, keyed by event ID.
type Kafka struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger

	statsTracker
}

// KafkaConfigMap builds the producer configuration. Entries in cfg.Config
// override the defaults.
func KafkaConfigMap(cfg config.Kafka) kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         "patcher",

		"acks":                "all",
		"retries":             "3",
		"linger.ms":           "5",
		"compression.type":    "snappy",
		"request.timeout.ms":  "5000",
		"delivery.timeout.ms": "10000",
	}

	for k, v := range cfg.Config {
		cm[k] = v
	}
	return cm
}

func NewKafka(cfg config.Kafka, logger *zap.Logger) (*Kafka, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be specified")
	}

	cm := KafkaConfigMap(cfg)
	producer, err := kafka.NewProducer(&cm)
	if err != nil {
		return nil, err
	}

	k := &Kafka{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	go k.deliveryReports()

	logger.Info("kafka publisher connected",
		zap.String("topic", cfg.Topic),
		zap.String("brokers", cfg.Brokers))

	return k, nil
}

func (k *Kafka) deliveryReports() {
	defer k.logger.Info("producer event loop closed")

	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				k.recordError(ev.TopicPartition.Error)
				k.logger.Error("delivery failed", zap.Error(ev.TopicPartition.Error))
			} else {
				k.logger.Debug("message delivered",
					zap.String("topic", *ev.TopicPartition.Topic),
					zap.Int32("partition", ev.TopicPartition.Partition),
					zap.Int64("offset", int64(ev.TopicPartition.Offset)))
			}
		case kafka.Error:
			k.logger.Error("producer error", zap.Error(ev))
		}
	}
}

func (k *Kafka) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		k.recordError(err)
		return err
	}

	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.ID),
		Value: value,
	}

	if err := k.producer.Produce(message, nil); err != nil {
		k.recordError(err)
		return err
	}

	k.recordWrite()
	return nil
}

// Close flushes outstanding messages, waiting at most 5 seconds.
func (k *Kafka) Close(ctx context.Context) error {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.logger.Warn("closing with undelivered messages", zap.Int("remaining", remaining))
	}
	k.producer.Close()
	return nil
}
