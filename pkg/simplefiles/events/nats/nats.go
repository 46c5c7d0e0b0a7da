// Package nats carries object-stored events over NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/events"
)

const (
	// DefaultSubject is the subject object-stored events are published on.
	DefaultSubject = "simplefiles.object.stored"
	// DefaultQueue is the queue group shared by subscribers.
	DefaultQueue = "simplefiles-classifiers"
)

// Conn is the subset of *nats.Conn used by the publisher.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Connect opens a NATS connection with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("simple-files"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher implements simplefiles.EventSink by publishing JSON messages.
type Publisher struct {
	conn    Conn
	subject string
}

// NewPublisher creates a publisher. An empty subject uses DefaultSubject.
func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

var _ simplefiles.EventSink = (*Publisher)(nil)

func (p *Publisher) ObjectStored(ctx context.Context, event simplefiles.ObjectStoredEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal object stored event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish object stored event: %w", err)
	}
	return nil
}

// Subscribe joins the DefaultQueue group on subject and runs handler for each
// message. The returned subscription must be drained or unsubscribed by the caller.
func Subscribe(conn *nats.Conn, subject string, handler events.Handler, logger *slog.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := conn.QueueSubscribe(subject, DefaultQueue, MessageHandler(handler, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// MessageHandler adapts an events.Handler to a nats.MsgHandler. Undecodable
// messages and handler failures are logged.
func MessageHandler(handler events.Handler, logger *slog.Logger) nats.MsgHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(msg *nats.Msg) {
		ctx := context.Background()
		event, err := decodeEvent(msg.Data)
		if err != nil {
			logger.Error("Failed to decode object stored event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			logger.Error("Failed to process object stored event", "key", event.Key, "error", err)
		}
	}
}

func decodeEvent(data []byte) (simplefiles.ObjectStoredEvent, error) {
	var event simplefiles.ObjectStoredEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, err
	}
	if event.Key == "" {
		return event, errors.New("event has no key")
	}
	return event, nil
}
