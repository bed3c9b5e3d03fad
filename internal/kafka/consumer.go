package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// Consumer оборачивает Sarama ConsumerGroup
type Consumer struct {
	group    sarama.ConsumerGroup
	topic    string
	messages chan Message
	closed   chan struct{}
}

// Message содержит сообщение и сессию для подтверждения
type Message struct {
	Value   []byte
	Session sarama.ConsumerGroupSession
	Message *sarama.ConsumerMessage
}

// Ack marks the message as processed. It is a no-op for messages that did not
// come from a consumer group session.
func (m Message) Ack() {
	if m.Session == nil || m.Message == nil {
		return
	}
	m.Session.MarkMessage(m.Message, "")
}

// Command decodes the message as a source configuration command.
func (m Message) Command() (models.SourceCommand, error) {
	var cmd models.SourceCommand
	if err := json.Unmarshal(m.Value, &cmd); err != nil {
		return models.SourceCommand{}, fmt.Errorf("decode source command: %w", err)
	}
	if cmd.SourceID == "" && cmd.Config != nil {
		cmd.SourceID = cmd.Config.ID
	}
	if cmd.SourceID == "" {
		return models.SourceCommand{}, errors.New("decode source command: missing source_id")
	}
	return cmd, nil
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:    group,
		topic:    topic,
		messages: make(chan Message),
		closed:   make(chan struct{}),
	}, nil
}

// StartListening запускает асинхронное потребление сообщений
func (c *Consumer) StartListening(ctx context.Context) {
	handler := &consumerGroupHandler{
		messages: c.messages,
		closed:   c.closed,
	}

	go func() {
		defer close(c.messages)

		retryDelay := time.Second * 5
		for {
			select {
			case <-ctx.Done():
				log.Info().Str("topic", c.topic).Msg("Consumer: context cancelled, stopping")
				return
			default:
				log.Debug().Str("topic", c.topic).Msg("Consumer: starting consumption cycle")
				err := c.group.Consume(ctx, []string{c.topic}, handler)
				if err != nil {
					log.Error().Err(err).Dur("retry_in", retryDelay).Msg("Consume error")
					select {
					case <-ctx.Done():
						return
					case <-time.After(retryDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

// Messages возвращает канал для чтения сообщений
func (c *Consumer) Messages() <-chan Message {
	return c.messages
}

// consumerGroupHandler реализует интерфейс sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messages chan<- Message
	closed   <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.messages <- Message{
				Value:   msg.Value,
				Session: sess,
				Message: msg,
			}:
				// Подтверждение будет после обработки
			case <-sess.Context().Done():
				return nil
			case <-h.closed:
				return nil
			}
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
