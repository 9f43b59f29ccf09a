package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/training/internal/events"
)

// WriterProfile holds the delivery settings for one topic.
type WriterProfile struct {
	RequiredAcks kafka.RequiredAcks
	BatchTimeout time.Duration
	BatchSize    int
	Compression  kafka.Compression
}

// Notifications flush almost immediately on a leader ack. Finished exercises wait for all replicas.
var defaultProfiles = map[string]WriterProfile{
	events.TopicNotifications: {
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 5 * time.Millisecond,
		BatchSize:    20,
	},
	events.TopicExerciseFinished: {
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		BatchSize:    100,
		Compression:  kafka.Snappy,
	},
}

var fallbackProfile = WriterProfile{
	RequiredAcks: kafka.RequireAll,
	BatchTimeout: 20 * time.Millisecond,
	BatchSize:    100,
	Compression:  kafka.Snappy,
}

// ProducerOption customises a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithTopicProfile overrides the writer settings used for topic.
func WithTopicProfile(topic string, profile WriterProfile) ProducerOption {
	return func(p *KafkaProducer) {
		p.profiles[topic] = profile
	}
}

// KafkaProducer lazily opens one writer per topic, configured from that topic's profile.
type KafkaProducer struct {
	brokers  []string
	profiles map[string]WriterProfile

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:  brokers,
		profiles: make(map[string]WriterProfile, len(defaultProfiles)),
		writers:  make(map[string]*kafka.Writer),
	}
	for topic, profile := range defaultProfiles {
		p.profiles[topic] = profile
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages publishes msgs to topic.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerFor(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) profileFor(topic string) WriterProfile {
	if profile, ok := p.profiles[topic]; ok {
		return profile
	}
	return fallbackProfile
}

func (p *KafkaProducer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	profile := p.profileFor(topic)
	// Keys are user ids: a user's events land on one partition in order.
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: profile.RequiredAcks,
		BatchTimeout: profile.BatchTimeout,
		BatchSize:    profile.BatchSize,
		Compression:  profile.Compression,
	}
	p.writers[topic] = w
	return w
}

// Close flushes and releases every writer, returning the first error.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
