package client

import (
	"context"
	"errors"
	"testing"

	"github.com/pecigonzalo/remote-shuffle/internal/client/mocks"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNewBrokerAdmin(t *testing.T) {
	type args struct {
		config ConnectorConfig
	}
	tests := []struct {
		name      string
		args      args
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:      "Default",
			args:      args{ConnectorConfig{BrokerAddrs: []string{"broker-1:9098"}}},
			assertion: assert.NoError,
		},
		{
			name:      "NoBrokers",
			args:      args{ConnectorConfig{}},
			assertion: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBrokerAdmin(tt.args.config)
			tt.assertion(t, err)
		})
	}
}

func TestBrokerAdmin_GetTopic(t *testing.T) {
	mockKafkaAdminClient := mocks.NewKafkaAdminClient(t)

	mockKafkaAdminClient.
		On("Metadata", mock.Anything, mock.Anything).
		Return(&kafka.MetadataResponse{
			Topics:  testRegistryTopics(),
			Brokers: testBrokers(),
		}, nil)

	type fields struct {
		client KafkaAdminClient
	}
	type args struct {
		ctx  context.Context
		name string
	}
	tests := []struct {
		name      string
		fields    fields
		args      args
		want      TopicInfo
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:   "Default",
			fields: fields{client: mockKafkaAdminClient},
			args:   args{context.Background(), testRegistryTopic},
			want: TopicInfo{Name: testRegistryTopic, Partitions: []PartitionAssignment{
				{ID: 0, Replicas: []int{0, 1, 2}},
				{ID: 1, Replicas: []int{0, 1, 2}},
				{ID: 2, Replicas: []int{0, 1, 2}},
			}},
			assertion: assert.NoError,
		}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &BrokerAdmin{
				client: tt.fields.client,
			}
			got, err := c.GetTopic(tt.args.ctx, tt.args.name)
			tt.assertion(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBrokerAdmin_CreateTopic(t *testing.T) {
	mockKafkaAdminClient := mocks.NewKafkaAdminClient(t)
	mockKafkaAdminClientWithError := mocks.NewKafkaAdminClient(t)

	mockKafkaAdminClient.
		On("CreateTopics", mock.Anything, mock.Anything).
		Return(&kafka.CreateTopicsResponse{}, nil)

	mockKafkaAdminClientWithError.
		On("CreateTopics", mock.Anything, mock.Anything).
		Return(&kafka.CreateTopicsResponse{
			Errors: map[string]error{testRegistryTopic: errors.New("Some error")},
		}, nil)

	type fields struct {
		client KafkaAdminClient
	}
	type args struct {
		ctx         context.Context
		name        string
		assignments []PartitionAssignment
		configs     map[string]string
	}
	tests := []struct {
		name      string
		fields    fields
		args      args
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:   "Default",
			fields: fields{client: mockKafkaAdminClient},
			args: args{context.Background(), testRegistryTopic,
				[]PartitionAssignment{
					{ID: 0, Replicas: []int{0, 1, 2}},
				},
				map[string]string{},
			},
			assertion: assert.NoError,
		},
		{
			name:      "CatchResponseError",
			fields:    fields{client: mockKafkaAdminClientWithError},
			args:      args{context.Background(), testRegistryTopic, []PartitionAssignment{}, map[string]string{}},
			assertion: assert.Error,
		}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &BrokerAdmin{
				client: tt.fields.client,
			}
			tt.assertion(t, c.CreateTopic(tt.args.ctx, tt.args.name, tt.args.assignments, tt.args.configs))
		})
	}
}

func TestBrokerAdmin_UpdateTopicConfig(t *testing.T) {
	mockKafkaAdminClient := mocks.NewKafkaAdminClient(t)
	mockKafkaAdminClientWithError := mocks.NewKafkaAdminClient(t)

	mockKafkaAdminClient.
		On("IncrementalAlterConfigs", mock.Anything, mock.Anything).
		Return(&kafka.IncrementalAlterConfigsResponse{}, nil)

	mockKafkaAdminClientWithError.
		On("IncrementalAlterConfigs", mock.Anything, mock.Anything).
		Return(&kafka.IncrementalAlterConfigsResponse{
			Resources: []kafka.IncrementalAlterConfigsResponseResource{
				{Error: errors.New("Some error")},
			},
		}, nil)

	type fields struct {
		client KafkaAdminClient
	}
	type args struct {
		ctx     context.Context
		name    string
		configs map[string]string
	}
	tests := []struct {
		name      string
		fields    fields
		args      args
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:   "Default",
			fields: fields{client: mockKafkaAdminClient},
			args: args{context.Background(), testRegistryTopic, map[string]string{
				"this": "that",
			}},
			assertion: assert.NoError,
		},
		{
			name:   "CatchResponseError",
			fields: fields{client: mockKafkaAdminClientWithError},
			args: args{context.Background(), testRegistryTopic, map[string]string{
				"this": "that",
			}},
			assertion: assert.Error,
		}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &BrokerAdmin{
				client: tt.fields.client,
			}
			tt.assertion(t, c.UpdateTopicConfig(tt.args.ctx, tt.args.name, tt.args.configs))
		})
	}
}

func TestBrokerAdmin_GetBrokers(t *testing.T) {
	mockKafkaAdminClient := mocks.NewKafkaAdminClient(t)

	mockKafkaAdminClient.
		On("Metadata", mock.Anything, mock.Anything).
		Return(&kafka.MetadataResponse{
			Topics:  testRegistryTopics(),
			Brokers: testBrokers(),
		}, nil)

	type fields struct {
		client KafkaAdminClient
	}
	type args struct {
		ctx context.Context
	}
	tests := []struct {
		name      string
		fields    fields
		args      args
		want      []BrokerInfo
		assertion assert.ErrorAssertionFunc
	}{
		{
			name:   "Default",
			fields: fields{client: mockKafkaAdminClient},
			args:   args{context.Background()},
			want: []BrokerInfo{
				{ID: 0, Rack: "rack1"},
				{ID: 1, Rack: "rack2"},
				{ID: 2, Rack: "rack3"},
			},
			assertion: assert.NoError,
		}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &BrokerAdmin{
				client: tt.fields.client,
			}
			got, err := c.GetBrokers(tt.args.ctx)
			tt.assertion(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBrokerAdmin_CreateTopicWithoutAssignments(t *testing.T) {
	mockKafkaAdminClient := mocks.NewKafkaAdminClient(t)

	mockKafkaAdminClient.
		On("CreateTopics", mock.Anything, mock.MatchedBy(func(req *kafka.CreateTopicsRequest) bool {
			return len(req.Topics) == 1 &&
				req.Topics[0].NumPartitions == 1 &&
				req.Topics[0].ReplicationFactor == -1 &&
				len(req.Topics[0].ConfigEntries) == 1
		})).
		Return(&kafka.CreateTopicsResponse{}, nil).
		Once()

	c := &BrokerAdmin{client: mockKafkaAdminClient}
	err := c.CreateTopic(context.Background(), testRegistryTopic, nil, map[string]string{
		"cleanup.policy": "compact",
	})
	assert.NoError(t, err)
}
