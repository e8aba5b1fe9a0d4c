package client

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// A Kafka admin client that uses the Brokers API
//
//go:generate mockery --name Admin --with-expecter --output ../mocks
type Admin interface {
	GetTopic(ctx context.Context, name string) (TopicInfo, error)
	CreateTopic(ctx context.Context, name string, assignments []PartitionAssignment, configs map[string]string) error
	UpdateTopicConfig(ctx context.Context, name string, configs map[string]string) error
	GetBrokers(ctx context.Context) ([]BrokerInfo, error)
}

var _ Admin = (*BrokerAdmin)(nil)

type BrokerAdmin struct {
	client KafkaAdminClient
}

func NewBrokerAdmin(config ConnectorConfig) (*BrokerAdmin, error) {
	connector, err := NewConnector(config)
	if err != nil {
		return nil, err
	}

	return &BrokerAdmin{
		client: connector.KafkaClient,
	}, nil
}

// GetTopic returns information about a topic
func (c *BrokerAdmin) GetTopic(ctx context.Context, name string) (TopicInfo, error) {
	topicInfo := TopicInfo{}

	resp, err := c.client.Metadata(ctx, &kafka.MetadataRequest{
		Topics: []string{name},
	})
	if err != nil {
		return topicInfo, err
	}

	// Check the topic lenght
	if topicCount := len(resp.Topics); topicCount != 1 {
		return topicInfo, fmt.Errorf("unexpected topic count: %d", topicCount)
	}

	topic := resp.Topics[0]
	if topic.Error != nil {
		return topicInfo, topic.Error
	}

	topicInfo.Name = topic.Name
	for _, p := range topic.Partitions {
		var replicas []int
		for _, r := range p.Replicas {
			replicas = append(replicas, r.ID)
		}
		topicInfo.Partitions = append(topicInfo.Partitions, PartitionAssignment{
			ID:       p.ID,
			Leader:   p.Leader.ID,
			Replicas: replicas,
		})
	}

	return topicInfo, nil
}

// CreateTopic creates a topic with the given name, assignments and config
func (c *BrokerAdmin) CreateTopic(
	ctx context.Context,
	name string,
	assignments []PartitionAssignment,
	configs map[string]string,
) error {
	var configEntries []kafka.ConfigEntry
	for k, v := range configs {
		configEntries = append(configEntries, kafka.ConfigEntry{
			ConfigName:  k,
			ConfigValue: v,
		})
	}

	topic := kafka.TopicConfig{
		Topic:             name,
		NumPartitions:     -1,
		ReplicationFactor: -1,
		ConfigEntries:     configEntries,
	}
	for _, partition := range assignments {
		topic.ReplicaAssignments = append(topic.ReplicaAssignments, kafka.ReplicaAssignment{
			Partition: partition.ID,
			Replicas:  partition.Replicas,
		})
	}
	// without explicit assignments let the brokers place a single partition
	if len(topic.ReplicaAssignments) == 0 {
		topic.NumPartitions = 1
	}

	resp, err := c.client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{topic},
	})
	if err != nil {
		return err
	}

	if err = KafkaErrorsToErr(resp.Errors); err != nil {
		return err
	}

	return nil
}

func (c *BrokerAdmin) UpdateTopicConfig(ctx context.Context, name string, configs map[string]string) error {
	var configEntries []kafka.ConfigEntry
	for k, v := range configs {
		configEntries = append(configEntries, kafka.ConfigEntry{
			ConfigName:  k,
			ConfigValue: v,
		})
	}

	resp, err := c.client.IncrementalAlterConfigs(ctx, &kafka.IncrementalAlterConfigsRequest{
		Resources: []kafka.IncrementalAlterConfigsRequestResource{{
			ResourceType: kafka.ResourceTypeTopic,
			ResourceName: name,
			Configs:      configEntriesToAPIConfigs(configEntries),
		}},
	})
	if err != nil {
		return err
	}
	if err = IncrementalAlterConfigsResponseResourcesError(resp.Resources); err != nil {
		return err
	}

	return nil
}

// GetBrokers gets matadata about all brokers
func (c *BrokerAdmin) GetBrokers(ctx context.Context) ([]BrokerInfo, error) {
	var brokerInfo []BrokerInfo

	resp, err := c.client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return brokerInfo, err
	}

	for _, b := range resp.Brokers {
		brokerInfo = append(brokerInfo, BrokerInfo{
			ID:   b.ID,
			Rack: b.Rack,
		})
	}

	return brokerInfo, nil
}

func configEntriesToAPIConfigs(
	configEntries []kafka.ConfigEntry,
) []kafka.IncrementalAlterConfigsRequestConfig {
	var apiConfigs []kafka.IncrementalAlterConfigsRequestConfig

	for _, entry := range configEntries {
		var op kafka.ConfigOperation

		if entry.ConfigValue == "" {
			op = kafka.ConfigOperationDelete
		} else {
			op = kafka.ConfigOperationSet
		}

		apiConfigs = append(
			apiConfigs,
			kafka.IncrementalAlterConfigsRequestConfig{
				Name:            entry.ConfigName,
				Value:           entry.ConfigValue,
				ConfigOperation: op,
			},
		)
	}

	return apiConfigs
}
