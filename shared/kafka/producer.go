package kafka

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// Producer publishes JSON events asynchronously. Delivery failures are
// logged, never returned to the caller.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *slog.Logger
}

func NewProducer(brokers []string, logger *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return newProducer(producer, logger), nil
}

func newProducer(producer sarama.AsyncProducer, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		for err := range producer.Errors() {
			logger.Error("failed to send kafka message", "topic", err.Msg.Topic, "error", err.Err)
		}
	}()
	return &Producer{producer: producer, logger: logger}
}

// Publish keys each event by session so a session's events stay ordered
// within one partition.
func (p *Producer) Publish(topic string, message map[string]interface{}) {
	bytes, err := json.Marshal(message)
	if err != nil {
		p.logger.Error("failed to encode kafka message", "topic", topic, "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(bytes),
	}
	if id, ok := message["session_id"].(string); ok && id != "" {
		msg.Key = sarama.StringEncoder(id)
	}
	p.producer.Input() <- msg
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
