// Package outbox delivers merged-record notifications to Kafka.
//
// Delivery is best-effort by contract: the merge path enqueues onto a
// buffered channel and never blocks on the broker. A full buffer drops the
// event and increments a counter; a lost notification is acceptable, a
// delayed merge is not.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/healthdata/internal/domain"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Publisher drains queued merge events to a Kafka topic.
type Publisher struct {
	writer           messageWriter
	events           chan domain.RecordMerged
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewPublisher constructs a Publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string, bufferSize int) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	return &Publisher{
		writer:           writer,
		events:           make(chan domain.RecordMerged, bufferSize),
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
}

// RecordMerged implements domain.EventSink. It never blocks; events beyond
// the buffer capacity are dropped.
func (p *Publisher) RecordMerged(event domain.RecordMerged) {
	select {
	case p.events <- event:
	default:
		recordDropped()
	}
}

// Start launches the delivery loop. It should be called in a goroutine and
// runs until the context is cancelled, then drains whatever is still queued.
func (p *Publisher) Start(ctx context.Context) {
	defer close(p.shutdownComplete)

	for {
		select {
		case event := <-p.events:
			p.deliver(ctx, event)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

// Wait blocks until the delivery loop has stopped.
func (p *Publisher) Wait() {
	<-p.shutdownComplete
}

// Close releases the Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case event := <-p.events:
			p.deliver(ctx, event)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event domain.RecordMerged) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("encode event %s: %v", event.EventID, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.SubjectID + ":" + event.Date),
		Value: payload,
		Time:  event.MergedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Printf("publish event %s: %v", event.EventID, err)
		}
		recordPublishFailed()
		return
	}
	recordPublished()
}
