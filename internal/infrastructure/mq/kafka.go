package mq

import (
	"fmt"

	"casino/internal/config"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Publisher delivers one keyed message to a topic.
type Publisher interface {
	Publish(topic, key, value string) error
	Close() error
}

// Producer publishes through a sarama SyncProducer.
type Producer struct {
	producer sarama.SyncProducer
}

// NewKafka dials the brokers with acks from all in-sync replicas.
func NewKafka(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewProducer(producer), nil
}

func NewProducer(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p}
}

// Publish sends one message. Messages sharing a key land on one partition,
// so keying by user id keeps a user's events in order.
func (p *Producer) Publish(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish %s/%s: %w", topic, key, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// LogPublisher stands in for Kafka when kafka.enabled is false: messages are
// logged at debug level and counted as delivered.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(topic, key, value string) error {
	p.log.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug(value)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
