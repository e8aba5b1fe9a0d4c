package client

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pecigonzalo/remote-shuffle/internal/client/mocks"
)

func TestNewProducerClient(t *testing.T) {
	tests := []struct {
		name      string
		config    ConnectorConfig
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:      "Default",
			config:    ConnectorConfig{BrokerAddrs: []string{"broker-1:9098"}},
			assertion: assert.NoError,
		},
		{
			name:      "NoBrokers",
			config:    ConnectorConfig{},
			assertion: assert.Error,
		},
		{
			name: "BadMechanism",
			config: ConnectorConfig{
				BrokerAddrs: []string{"broker-1:9098"},
				SASL:        SASLConfig{Enabled: true, Mechanism: "INVALID"},
			},
			assertion: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewProducerClient(tt.config, testRegistryTopic)
			tt.assertion(t, err)
			if err == nil {
				writer := c.writer.(*kafka.Writer)
				assert.Equal(t, testRegistryTopic, writer.Topic)
				assert.IsType(t, &kafka.Hash{}, writer.Balancer, "records of one key must land on one partition")
				assert.Equal(t, kafka.RequireAll, writer.RequiredAcks)
			}
		})
	}
}

func TestProducerClient_Write(t *testing.T) {
	record := testRecordMessage()
	tombstone := Message{Key: []byte(testRecordKey)}

	tests := []struct {
		name      string
		msgs      []Message
		writeErr  error
		want      []kafka.Message
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:      "Record",
			msgs:      []Message{*record},
			want:      []kafka.Message{{Partition: 0, Key: []byte(testRecordKey), Value: []byte(testRecordValue)}},
			assertion: assert.NoError,
		},
		{
			name: "Tombstones",
			msgs: []Message{tombstone, {Key: []byte("app-1-0/4-0-1")}},
			want: []kafka.Message{
				{Key: []byte(testRecordKey)},
				{Key: []byte("app-1-0/4-0-1")},
			},
			assertion: assert.NoError,
		},
		{
			name:      "Error",
			msgs:      []Message{*record},
			writeErr:  errors.New("not enough replicas"),
			want:      []kafka.Message{{Partition: 0, Key: []byte(testRecordKey), Value: []byte(testRecordValue)}},
			assertion: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := mocks.NewKafkaWriterClient(t)
			args := []interface{}{mock.Anything}
			for _, m := range tt.want {
				args = append(args, m)
			}
			writer.On("WriteMessages", args...).Return(tt.writeErr).Once()

			c := &ProducerClient{writer: writer}
			tt.assertion(t, c.Write(context.Background(), tt.msgs...))
		})
	}
}

func TestProducerClient_Close(t *testing.T) {
	tests := []struct {
		name      string
		closeErr  error
		assertion assert.ErrorAssertionFunc
	}{
		{name: "Default", assertion: assert.NoError},
		{name: "Error", closeErr: errors.New("flush pending records"), assertion: assert.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := mocks.NewKafkaWriterClient(t)
			writer.On("Close").Return(tt.closeErr).Once()

			c := ProducerClient{writer: writer}
			tt.assertion(t, c.Close())
		})
	}
}
