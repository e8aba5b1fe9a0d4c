package client

import (
	"context"

	"github.com/segmentio/kafka-go"
)

//go:generate mockery --name Producer --with-expecter --output ../mocks
type Producer interface {
	Write(ctx context.Context, msgs ...Message) error
	Close() error
}

var _ Producer = (*ProducerClient)(nil)

type ProducerClient struct {
	writer KafkaWriterClient
}

// NewProducerClient returns a producer writing keyed messages to topic. Keys
// are hashed to partitions so records of one key stay ordered.
func NewProducerClient(config ConnectorConfig, topic string) (*ProducerClient, error) {
	connector, err := NewConnector(config)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(connector.Config.BrokerAddrs...),
		Transport:    connector.KafkaClient.Transport,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &ProducerClient{
		writer: writer,
	}, nil
}

func (c *ProducerClient) Write(ctx context.Context, msgs ...Message) error {
	var kafkaMessages []kafka.Message
	for _, m := range msgs {
		kafkaMessages = append(kafkaMessages, kafka.Message{
			Partition: m.Partition,
			Key:       m.Key,
			Value:     m.Value,
		})
	}

	if err := c.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		return err
	}

	return nil
}

func (c ProducerClient) Close() error {
	return c.writer.Close()
}
