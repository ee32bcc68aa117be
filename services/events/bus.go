package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/auth"
)

// Bus carries auth state events in process and, when brokers are configured, forwards
// them to Kafka for the other services.
type Bus struct {
	pubSub    *gochannel.GoChannel
	forwarder message.Publisher
	topic     string
	logger    core.Logger
}

var _ auth.EventBus = (*Bus)(nil)

func NewBus(conf *core.Config, logger core.Logger) (*Bus, error) {
	wmLogger := NewLoggerAdapter(logger)
	bus := &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger),
		topic:  conf.KafkaTopic,
		logger: logger,
	}

	if len(conf.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(
			kafka.PublisherConfig{
				Brokers:   conf.KafkaBrokers,
				Marshaler: kafka.DefaultMarshaler{},
			},
			wmLogger,
		)
		if err != nil {
			_ = bus.pubSub.Close()
			return nil, errors.Wrap(err, "creating kafka publisher")
		}
		bus.forwarder = publisher
	}
	return bus, nil
}

func (b *Bus) Publish(ctx context.Context, event auth.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encoding auth event")
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.SetContext(ctx)

	if err = b.pubSub.Publish(b.topic, msg); err != nil {
		return errors.Wrap(err, "publishing auth event")
	}
	if b.forwarder != nil {
		if err = b.forwarder.Publish(b.topic, msg.Copy()); err != nil {
			b.logger.Error("forwarding auth event", err, map[string]interface{}{"eventID": event.ID})
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan auth.Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to auth events")
	}

	out := make(chan auth.Event)
	go func() {
		defer close(out)
		for msg := range messages {
			var event auth.Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("decoding auth event", err, map[string]interface{}{"messageID": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	if b.forwarder != nil {
		if err := b.forwarder.Close(); err != nil {
			b.logger.Error("closing kafka publisher", err)
		}
	}
	return b.pubSub.Close()
}

// loggerAdapter sends watermill logs to a core.Logger.
type loggerAdapter struct {
	logger core.Logger
	fields watermill.LogFields
}

func NewLoggerAdapter(logger core.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger}
}

func (l *loggerAdapter) merge(fields watermill.LogFields) map[string]interface{} {
	return l.fields.Add(fields)
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, err, l.merge(fields))
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, l.merge(fields))
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.merge(fields))
}

func (l *loggerAdapter) Trace(string, watermill.LogFields) {}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: l.logger, fields: l.fields.Add(fields)}
}
