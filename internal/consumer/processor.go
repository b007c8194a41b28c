// Package consumer reads log events from Kafka and projects them into
// per-user profile counters.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader is the subset of *kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded log events.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Message is a log event published by the outbox dispatcher. UserID comes
// from the user_id header, or from the payload when the header is absent.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	UserID        string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRoute sends events of eventType to h instead of the default handler.
func WithRoute(eventType string, h Handler) Option {
	return func(p *Processor) {
		p.routes[eventType] = h
	}
}

// Processor fetches log events, resolves their owner and hands each one to
// the handler routed for its event type.
type Processor struct {
	reader   Reader
	fallback Handler
	routes   map[string]Handler
	logger   *log.Logger
	now      func() time.Time
}

// NewProcessor constructs a Processor. fallback handles event types without
// a route and may be nil, in which case those events are skipped.
func NewProcessor(reader Reader, fallback Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		fallback: fallback,
		routes:   make(map[string]Handler),
		logger:   log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type outcome int

const (
	outcomeHandled outcome = iota
	outcomeSkipped
	outcomeUndecodable
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeHandled:
		return "handled"
	case outcomeSkipped:
		return "skipped"
	case outcomeUndecodable:
		return "undecodable"
	default:
		return "failed"
	}
}

// Run processes messages until ctx is cancelled. Everything except a
// handler failure is committed, so skipped and undecodable events are not
// redelivered.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		result := p.process(ctx, raw)
		observeOutcome(raw.Topic, result)
		if result == outcomeFailed {
			continue
		}
		if err := p.reader.CommitMessages(ctx, raw); err != nil {
			p.logger.Printf("commit error (topic=%s, offset=%d): %v", raw.Topic, raw.Offset, err)
		}
	}
}

func (p *Processor) process(ctx context.Context, raw kafka.Message) outcome {
	msg, err := decodeMessage(raw)
	if err != nil {
		p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", raw.Topic, raw.Partition, raw.Offset, err)
		return outcomeUndecodable
	}
	if msg.UserID == "" {
		recordSkipped("missing_user")
		return outcomeSkipped
	}

	h := p.handlerFor(msg.EventType)
	if h == nil {
		recordSkipped("unrouted")
		return outcomeSkipped
	}

	start := p.now()
	if err := h.Handle(ctx, msg); err != nil {
		p.logger.Printf("handler error (event_type=%s, user=%s): %v", msg.EventType, msg.UserID, err)
		return outcomeFailed
	}
	observeHandled(msg, p.now().Sub(start), p.now())
	return outcomeHandled
}

func (p *Processor) handlerFor(eventType string) Handler {
	if h, ok := p.routes[eventType]; ok {
		return h
	}
	return p.fallback
}

// decodeMessage strips the registry frame and resolves the event owner.
// A user_id header that disagrees with the payload rejects the message.
func decodeMessage(raw kafka.Message) (Message, error) {
	if len(raw.Value) < 5 {
		return Message{}, fmt.Errorf("frame too short: %d bytes", len(raw.Value))
	}
	if raw.Value[0] != 0 {
		return Message{}, fmt.Errorf("unexpected magic byte %d", raw.Value[0])
	}
	eventType := header(raw, "event_type")
	if eventType == "" {
		return Message{}, errors.New("missing event_type header")
	}

	payload := json.RawMessage(append([]byte(nil), raw.Value[5:]...))
	var owner struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(payload, &owner); err != nil {
		return Message{}, fmt.Errorf("payload: %w", err)
	}

	userID := header(raw, "user_id")
	switch {
	case userID == "":
		userID = owner.UserID
	case owner.UserID != "" && owner.UserID != userID:
		return Message{}, fmt.Errorf("user_id header %q does not match payload user %q", userID, owner.UserID)
	}

	return Message{
		Topic:         raw.Topic,
		Partition:     raw.Partition,
		Offset:        raw.Offset,
		Timestamp:     raw.Time,
		EventType:     eventType,
		UserID:        userID,
		SchemaSubject: header(raw, "schema_subject"),
		SchemaID:      int(binary.BigEndian.Uint32(raw.Value[1:5])),
		Payload:       payload,
	}, nil
}

func header(raw kafka.Message, key string) string {
	for _, h := range raw.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
